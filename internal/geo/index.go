// Package geo implements the user location index: last-known position per
// user identity with great-circle radius queries over the stored set.
//
// The index is an in-memory map with an optional write-through location
// store. Reads are always served from memory; the store provides durability
// across restarts via Hydrate. Per-record updates are atomic with respect to
// concurrent radius queries, but the index is not globally locked per user:
// different identities' records are independent.
package geo

import (
	"context"
	"sort"
	"sync"

	"rainbowatch/internal/types"
)

// LocationStore is the optional persistence behind the index. Implemented by
// db.LocationRepository.
type LocationStore interface {
	UpsertLocation(ctx context.Context, loc types.UserLocation) error
	ListLocations(ctx context.Context) ([]types.UserLocation, error)
}

// Compile-time assertion that Index implements types.GeoIndex.
var _ types.GeoIndex = (*Index)(nil)

// Index is the in-memory location index. Safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	records map[string]types.UserLocation
	dropped int64

	store  LocationStore // nil when running memory-only
	clock  types.Clock
	logger types.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithStore attaches a write-through location store.
func WithStore(store LocationStore) Option {
	return func(idx *Index) { idx.store = store }
}

// WithClock overrides the clock (testing).
func WithClock(clock types.Clock) Option {
	return func(idx *Index) { idx.clock = clock }
}

// NewIndex creates an empty Index.
func NewIndex(logger types.Logger, opts ...Option) *Index {
	idx := &Index{
		records: make(map[string]types.UserLocation),
		clock:   types.RealClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Upsert replaces any prior location for the identity. Out-of-range
// coordinates are rejected with a validation error, never clamped. When a
// store is attached, the write goes through to it first; a store failure is
// surfaced as a GeoIndex error and the in-memory record is left untouched.
func (idx *Index) Upsert(ctx context.Context, userID string, lat, lon float64) error {
	if userID == "" {
		return types.NewAppError(types.ErrCodeValidationMissingUserID, "user id must not be empty", nil)
	}
	if err := types.ValidateCoordinates(lat, lon); err != nil {
		return err
	}

	loc := types.UserLocation{
		UserID:    userID,
		Lat:       lat,
		Lon:       lon,
		UpdatedAt: idx.clock.Now(),
	}

	if idx.store != nil {
		if err := idx.store.UpsertLocation(ctx, loc); err != nil {
			return types.NewAppError(types.ErrCodeGeoIndexUnavailable, "location store write failed", err)
		}
	}

	idx.mu.Lock()
	idx.records[userID] = loc
	idx.mu.Unlock()

	return nil
}

// Contains reports whether the identity has a stored location. Used to
// distinguish first-time registrations (welcome notification path).
func (idx *Index) Contains(userID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.records[userID]
	return ok
}

// QueryWithinRadius returns every stored location within radiusKm of the
// query point, ordered by ascending distance, excluding excludeUserID when
// non-empty. radiusKm = 0 matches only exact-coincident points. An empty
// index yields an empty result, not an error.
//
// A stored record with malformed coordinates is a data-integrity violation:
// it is skipped and counted as dropped rather than aborting the query, so
// one corrupt row cannot make the whole neighborhood invisible to alerting.
func (idx *Index) QueryWithinRadius(ctx context.Context, lat, lon, radiusKm float64, excludeUserID string) ([]types.UserLocation, error) {
	if err := types.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if radiusKm < 0 {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "radius must be non-negative", nil)
	}

	idx.mu.RLock()
	snapshot := make([]types.UserLocation, 0, len(idx.records))
	for _, loc := range idx.records {
		snapshot = append(snapshot, loc)
	}
	idx.mu.RUnlock()

	results := make([]types.UserLocation, 0)
	var droppedNow int64
	for _, loc := range snapshot {
		if loc.UserID == excludeUserID {
			continue
		}
		if types.ValidateCoordinates(loc.Lat, loc.Lon) != nil {
			droppedNow++
			continue
		}
		d := Haversine(lat, lon, loc.Lat, loc.Lon)
		if d <= radiusKm {
			loc.DistanceKm = d
			results = append(results, loc)
		}
	}

	if droppedNow > 0 {
		idx.mu.Lock()
		idx.dropped += droppedNow
		idx.mu.Unlock()
		if idx.logger != nil {
			idx.logger.Warn("skipped malformed location records during radius query",
				"dropped", droppedNow,
			)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceKm != results[j].DistanceKm {
			return results[i].DistanceKm < results[j].DistanceKm
		}
		return results[i].UserID < results[j].UserID
	})

	return results, nil
}

// Hydrate loads the index from the attached store, replacing the in-memory
// set. Rows with an empty identity are dropped outright; rows with malformed
// coordinates are loaded as-is and skipped per-query, so the dropped count
// stays visible to alerting instead of disappearing at startup. No-op
// without a store.
func (idx *Index) Hydrate(ctx context.Context) error {
	if idx.store == nil {
		return nil
	}

	rows, err := idx.store.ListLocations(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeGeoIndexUnavailable, "location store read failed", err)
	}

	records := make(map[string]types.UserLocation, len(rows))
	var droppedNow int64
	for _, loc := range rows {
		if loc.UserID == "" {
			droppedNow++
			continue
		}
		records[loc.UserID] = loc
	}

	idx.mu.Lock()
	idx.records = records
	idx.dropped += droppedNow
	idx.mu.Unlock()

	if idx.logger != nil {
		idx.logger.Info("location index hydrated",
			"loaded", len(records),
			"dropped", droppedNow,
		)
	}

	return nil
}

// DroppedRecords returns the cumulative count of malformed records skipped.
func (idx *Index) DroppedRecords() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dropped
}

// Len returns the number of indexed identities.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}
