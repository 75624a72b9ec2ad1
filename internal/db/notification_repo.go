package db

import (
	"context"
	"time"

	"rainbowatch/internal/types"
)

// Compile-time assertion that NotificationRepository implements
// types.NotificationStore.
var _ types.NotificationStore = (*NotificationRepository)(nil)

// NotificationRepository provides append-only data access for the
// notifications table. Records are written once per delivery attempt and
// never updated; a redelivery produces a new row. The only removal path is
// the archiver's retention sweep.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a NotificationRepository backed by the
// given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Append inserts one notification record. The caller sets the ID and all
// outcome fields; the row is immutable after this call.
func (r *NotificationRepository) Append(ctx context.Context, rec *types.NotificationRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO notifications
		 (id, recipient_id, trigger_ref, kind, title, body, outcome, failure_reason, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID,
		rec.RecipientID,
		rec.TriggerRef,
		string(rec.Kind),
		rec.Title,
		rec.Body,
		string(rec.Outcome),
		nilIfEmpty(rec.FailureReason),
		rec.SentAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to append notification record", err)
	}
	return nil
}

// ListOlderThan returns up to limit records sent before the cutoff, oldest
// first. Used by the archiver to export before pruning.
func (r *NotificationRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*types.NotificationRecord, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, recipient_id, trigger_ref, kind, title, body, outcome,
		        COALESCE(failure_reason, ''), sent_at
		 FROM notifications
		 WHERE sent_at < $1
		 ORDER BY sent_at ASC, id ASC
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list old notification records", err)
	}
	defer rows.Close()

	var results []*types.NotificationRecord
	for rows.Next() {
		var (
			rec     types.NotificationRecord
			kind    string
			outcome string
		)
		if err := rows.Scan(&rec.ID, &rec.RecipientID, &rec.TriggerRef, &kind,
			&rec.Title, &rec.Body, &outcome, &rec.FailureReason, &rec.SentAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification row", err)
		}
		rec.Kind = types.NotificationKind(kind)
		rec.Outcome = types.DeliveryOutcome(outcome)
		results = append(results, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating notification rows", err)
	}

	return results, nil
}

// DeleteOlderThan hard-deletes records sent before the cutoff and returns the
// count removed. Called by the archiver only after a successful export.
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notifications WHERE sent_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete old notification records", err)
	}
	return tag.RowsAffected(), nil
}
