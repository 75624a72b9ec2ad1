package db

import (
	"context"

	"rainbowatch/internal/types"
)

// LocationRepository provides data access for the user_locations table. It is
// the durable side of the in-memory location index: each write goes through
// here first, and the index is rebuilt from ListLocations on startup.
//
// The table holds only the last known position per user; an upsert replaces
// any prior row for that identity.
type LocationRepository struct {
	db DBTX
}

// NewLocationRepository creates a LocationRepository backed by the given
// database connection (pool or transaction).
func NewLocationRepository(db DBTX) *LocationRepository {
	return &LocationRepository{db: db}
}

// UpsertLocation inserts or replaces the location row for loc.UserID.
func (r *LocationRepository) UpsertLocation(ctx context.Context, loc types.UserLocation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_locations (user_id, lat, lon, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			updated_at = EXCLUDED.updated_at`,
		loc.UserID,
		loc.Lat,
		loc.Lon,
		loc.UpdatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert user location", err)
	}
	return nil
}

// ListLocations returns every stored user location. Used to hydrate the
// in-memory index at startup; rows are returned as stored, without
// coordinate validation.
func (r *LocationRepository) ListLocations(ctx context.Context) ([]types.UserLocation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, lat, lon, updated_at FROM user_locations`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list user locations", err)
	}
	defer rows.Close()

	var results []types.UserLocation
	for rows.Next() {
		var loc types.UserLocation
		if err := rows.Scan(&loc.UserID, &loc.Lat, &loc.Lon, &loc.UpdatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user location row", err)
		}
		results = append(results, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating user location rows", err)
	}

	return results, nil
}
