package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"rainbowatch/internal/types"
)

// Compile-time assertion that TokenRepository implements types.ChannelResolver.
var _ types.ChannelResolver = (*TokenRepository)(nil)

// TokenRepository provides data access for the device_tokens table: one push
// token per user identity. It is the ChannelResolver behind the dispatcher;
// a user without a row simply has no delivery channel.
type TokenRepository struct {
	db DBTX
}

// NewTokenRepository creates a TokenRepository backed by the given database
// connection (pool or transaction).
func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// Register inserts or replaces the push token for userID.
func (r *TokenRepository) Register(ctx context.Context, userID, token string, now time.Time) error {
	if userID == "" {
		return types.NewAppError(types.ErrCodeValidationMissingUserID, "user id must not be empty", nil)
	}
	if token == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "push token must not be empty", nil)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO device_tokens (user_id, token, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET
			token = EXCLUDED.token,
			updated_at = EXCLUDED.updated_at`,
		userID, token, now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to register device token", err)
	}
	return nil
}

// Channel returns the push token registered for userID. A user without a
// registered token yields ErrNoChannel, which the dispatcher folds into a
// skipped_no_channel outcome.
func (r *TokenRepository) Channel(ctx context.Context, userID string) (string, error) {
	row := r.db.QueryRow(ctx,
		`SELECT token FROM device_tokens WHERE user_id = $1`,
		userID,
	)

	var token string
	if err := row.Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.ErrNoChannel
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to resolve delivery channel", err)
	}
	return token, nil
}
