package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rainbowatch/internal/types"
)

func TestNotificationRepository_Append(t *testing.T) {
	db := new(mockDBTX)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	ref := "sgt_abc"
	rec := &types.NotificationRecord{
		ID:          "ntf_1",
		RecipientID: "user_2",
		TriggerRef:  &ref,
		Kind:        types.KindSightingAlert,
		Title:       "Rainbow nearby!",
		Body:        "A rainbow was sighted 2.1 km away.",
		Outcome:     types.OutcomeDelivered,
		SentAt:      time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Append(ctx, rec)
	require.NoError(t, err)
	db.AssertExpectations(t)

	// Empty failure reason must be stored as NULL, not "".
	args := db.Calls[0].Arguments.Get(2).([]any)
	assert.Nil(t, args[7])
}

func TestNotificationRepository_Append_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Append(ctx, &types.NotificationRecord{ID: "ntf_1"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestNotificationRepository_ListOlderThan(t *testing.T) {
	db := new(mockDBTX)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	sentAt := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rows := &sliceRows{scans: []func(dest ...any) error{
		func(dest ...any) error {
			*dest[0].(*string) = "ntf_old"
			*dest[1].(*string) = "user_9"
			*dest[2].(**string) = nil
			*dest[3].(*string) = string(types.KindWelcome)
			*dest[4].(*string) = "Welcome to rainbowatch"
			*dest[5].(*string) = "You will be alerted when a rainbow is likely nearby."
			*dest[6].(*string) = string(types.OutcomeDelivered)
			*dest[7].(*string) = ""
			*dest[8].(*time.Time) = sentAt
			return nil
		},
	}}

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	records, err := repo.ListOlderThan(ctx, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), 100)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "ntf_old", records[0].ID)
	assert.Equal(t, types.KindWelcome, records[0].Kind)
	assert.Equal(t, types.OutcomeDelivered, records[0].Outcome)
	assert.Nil(t, records[0].TriggerRef)
	assert.Equal(t, sentAt, records[0].SentAt)
}

func TestNotificationRepository_DeleteOlderThan(t *testing.T) {
	db := new(mockDBTX)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 42"), nil)

	n, err := repo.DeleteOlderThan(ctx, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}
