package types

import (
	"context"
	"time"
)

// GeoIndex maps user identity to last known location and answers radius
// queries. Implementations must make per-record updates atomic with respect
// to concurrent radius queries; the index as a whole need not be globally
// locked.
type GeoIndex interface {
	// Upsert replaces any prior location for the identity. Rejects empty
	// userID and out-of-range coordinates with a validation AppError.
	Upsert(ctx context.Context, userID string, lat, lon float64) error

	// QueryWithinRadius returns every stored location whose great-circle
	// distance to the query point is <= radiusKm, ordered by ascending
	// distance, excluding excludeUserID when non-empty. An empty index
	// yields an empty slice, not an error. A malformed stored record is
	// skipped and counted as dropped rather than aborting the query.
	QueryWithinRadius(ctx context.Context, lat, lon, radiusKm float64, excludeUserID string) ([]UserLocation, error)
}

// PushSender is the opaque push-delivery capability. Any subset of calls may
// fail independently; failures are data for the dispatcher, not errors to
// propagate.
type PushSender interface {
	Send(ctx context.Context, channel, title, body string, metadata map[string]string) (*PushResult, error)
}

// ChannelResolver maps a user identity to its delivery channel address
// (push token). Returns ErrNoChannel (possibly wrapped) when the user has
// no registered channel.
type ChannelResolver interface {
	Channel(ctx context.Context, userID string) (string, error)
}

// NotificationStore is the append-only persistence capability for
// NotificationRecords.
type NotificationStore interface {
	Append(ctx context.Context, rec *NotificationRecord) error
}

// CacheInvalidator is the slice of the response cache the dispatcher needs:
// bulk removal by key prefix after an event changes underlying data.
type CacheInvalidator interface {
	InvalidatePrefix(ctx context.Context, prefix string) int
}

// ObservationSource delivers weather observations on demand.
type ObservationSource interface {
	Current(ctx context.Context, lat, lon float64) (*WeatherObservation, error)
}

// Logger defines the structured logging interface used throughout the service.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
