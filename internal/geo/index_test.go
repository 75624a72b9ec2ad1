package geo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rainbowatch/internal/types"
)

// Central Stockholm and points at known rough distances from it.
const (
	centerLat = 59.3293
	centerLon = 18.0686
)

func TestHaversineKnownDistance(t *testing.T) {
	// Stockholm -> Uppsala is roughly 63-64 km great-circle.
	d := Haversine(centerLat, centerLon, 59.8586, 17.6389)
	assert.InDelta(t, 63.5, d, 2.0)

	// Zero distance for coincident points.
	assert.Equal(t, 0.0, Haversine(centerLat, centerLon, centerLat, centerLon))
}

func TestUpsertValidation(t *testing.T) {
	idx := NewIndex(nil)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "usr_1", centerLat, centerLon))

	err := idx.Upsert(ctx, "", centerLat, centerLon)
	assert.True(t, types.IsValidation(err), "empty user id must be rejected")

	err = idx.Upsert(ctx, "usr_2", 91, 0)
	assert.True(t, types.IsValidation(err), "latitude 91 must be rejected, not clamped")

	err = idx.Upsert(ctx, "usr_2", 0, -181)
	assert.True(t, types.IsValidation(err), "longitude -181 must be rejected")

	assert.Equal(t, 1, idx.Len(), "rejected upserts must not create records")
}

func TestUpsertReplacesPrior(t *testing.T) {
	idx := NewIndex(nil)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "usr_1", centerLat, centerLon))
	require.NoError(t, idx.Upsert(ctx, "usr_1", 40.0, -74.0))

	assert.Equal(t, 1, idx.Len())

	got, err := idx.QueryWithinRadius(ctx, 40.0, -74.0, 1, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 40.0, got[0].Lat)
}

func TestQueryWithinRadiusProperties(t *testing.T) {
	idx := NewIndex(nil)
	ctx := context.Background()

	// A spread of users at increasing offsets north of the center.
	// 0.01 degrees of latitude is roughly 1.11 km.
	points := map[string]float64{
		"usr_a": 0.00, // ~0 km
		"usr_b": 0.02, // ~2.2 km
		"usr_c": 0.05, // ~5.6 km
		"usr_d": 0.08, // ~8.9 km
		"usr_e": 0.20, // ~22 km, outside a 10 km radius
	}
	for id, off := range points {
		require.NoError(t, idx.Upsert(ctx, id, centerLat+off, centerLon))
	}

	got, err := idx.QueryWithinRadius(ctx, centerLat, centerLon, 10, "")
	require.NoError(t, err)
	require.Len(t, got, 4, "usr_e is outside the radius")

	// No false negatives, distances within bound, sorted ascending.
	prev := -1.0
	for _, loc := range got {
		d := Haversine(centerLat, centerLon, loc.Lat, loc.Lon)
		assert.LessOrEqual(t, d, 10.0)
		assert.InDelta(t, d, loc.DistanceKm, 1e-9)
		assert.GreaterOrEqual(t, loc.DistanceKm, prev, "results must be sorted ascending by distance")
		prev = loc.DistanceKm
	}
	assert.Equal(t, "usr_a", got[0].UserID)
}

func TestQueryExcludesUser(t *testing.T) {
	idx := NewIndex(nil)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "usr_reporter", centerLat, centerLon))
	require.NoError(t, idx.Upsert(ctx, "usr_other", centerLat+0.01, centerLon))

	got, err := idx.QueryWithinRadius(ctx, centerLat, centerLon, 10, "usr_reporter")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "usr_other", got[0].UserID)
}

func TestQueryZeroRadius(t *testing.T) {
	idx := NewIndex(nil)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "usr_exact", centerLat, centerLon))
	require.NoError(t, idx.Upsert(ctx, "usr_near", centerLat+0.001, centerLon))

	got, err := idx.QueryWithinRadius(ctx, centerLat, centerLon, 0, "")
	require.NoError(t, err)
	require.Len(t, got, 1, "radius 0 matches only exact-coincident points")
	assert.Equal(t, "usr_exact", got[0].UserID)
}

func TestQueryEmptyIndex(t *testing.T) {
	idx := NewIndex(nil)

	got, err := idx.QueryWithinRadius(context.Background(), centerLat, centerLon, 10, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// fakeStore is a LocationStore test double.
type fakeStore struct {
	mu        sync.Mutex
	rows      []types.UserLocation
	upserts   int
	upsertErr error
	listErr   error
}

func (f *fakeStore) UpsertLocation(ctx context.Context, loc types.UserLocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.rows = append(f.rows, loc)
	return nil
}

func (f *fakeStore) ListLocations(ctx context.Context) ([]types.UserLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]types.UserLocation(nil), f.rows...), nil
}

func TestCorruptStoredRecordSkippedNotFatal(t *testing.T) {
	store := &fakeStore{rows: []types.UserLocation{
		{UserID: "usr_good", Lat: centerLat, Lon: centerLon},
		{UserID: "usr_corrupt", Lat: 412.0, Lon: 9999.0},
	}}
	idx := NewIndex(nil, WithStore(store))
	require.NoError(t, idx.Hydrate(context.Background()))

	got, err := idx.QueryWithinRadius(context.Background(), centerLat, centerLon, 10, "")
	require.NoError(t, err, "one corrupt row must not make the neighborhood invisible")
	require.Len(t, got, 1)
	assert.Equal(t, "usr_good", got[0].UserID)
	assert.Equal(t, int64(1), idx.DroppedRecords())
}

func TestUpsertWriteThroughFailureIsGeoIndexError(t *testing.T) {
	store := &fakeStore{upsertErr: errors.New("connection refused")}
	idx := NewIndex(nil, WithStore(store))

	err := idx.Upsert(context.Background(), "usr_1", centerLat, centerLon)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeGeoIndexUnavailable, appErr.Code)
	assert.Equal(t, 0, idx.Len(), "failed write-through must not leave a memory record")
}

func TestHydrateReplacesAndDropsEmptyIDs(t *testing.T) {
	store := &fakeStore{rows: []types.UserLocation{
		{UserID: "usr_1", Lat: centerLat, Lon: centerLon},
		{UserID: "", Lat: 1, Lon: 1},
	}}
	idx := NewIndex(nil, WithStore(store))

	require.NoError(t, idx.Hydrate(context.Background()))
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, int64(1), idx.DroppedRecords())
	assert.True(t, idx.Contains("usr_1"))
}

// TestConcurrentUpsertsAndQueries exercises the index under racing writers
// and readers; run with -race to verify no torn reads.
func TestConcurrentUpsertsAndQueries(t *testing.T) {
	idx := NewIndex(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("usr_%d", n)
				_ = idx.Upsert(ctx, id, centerLat+float64(j)*0.0001, centerLon)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := idx.QueryWithinRadius(ctx, centerLat, centerLon, 5, "")
				require.NoError(t, err)
				for _, loc := range got {
					assert.NotEmpty(t, loc.UserID)
				}
			}
		}()
	}
	wg.Wait()
}
