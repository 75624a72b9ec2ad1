package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rainbowatch/internal/types"
)

// SightingRepository provides data access for the sightings table.
type SightingRepository struct {
	db DBTX
}

// NewSightingRepository creates a SightingRepository backed by the given
// database connection (pool or transaction).
func NewSightingRepository(db DBTX) *SightingRepository {
	return &SightingRepository{db: db}
}

// NewSightingID returns a fresh prefixed sighting identifier.
func NewSightingID() string {
	return "sgt_" + uuid.NewString()
}

// Create inserts a new sighting. If the ID is empty a prefixed UUID is
// assigned before the insert.
func (r *SightingRepository) Create(ctx context.Context, s *types.SightingEvent) error {
	if s.ID == "" {
		s.ID = NewSightingID()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO sightings (id, reporter_id, lat, lon, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID,
		s.ReporterID,
		s.Lat,
		s.Lon,
		nilIfEmpty(s.Message),
		s.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create sighting", err)
	}
	return nil
}

// GetByID fetches a single sighting.
func (r *SightingRepository) GetByID(ctx context.Context, id string) (*types.SightingEvent, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, reporter_id, lat, lon, COALESCE(message, ''), created_at
		 FROM sightings WHERE id = $1`,
		id,
	)

	var s types.SightingEvent
	if err := row.Scan(&s.ID, &s.ReporterID, &s.Lat, &s.Lon, &s.Message, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSighting, "sighting not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get sighting", err)
	}
	return &s, nil
}

// ListNearby returns sightings created since the cutoff within radiusKm of
// the query point, ordered by ascending great-circle distance. The distance
// is computed in SQL with the haversine formula on a 6371 km sphere, matching
// the in-process geo package.
func (r *SightingRepository) ListNearby(ctx context.Context, lat, lon, radiusKm float64, since time.Time, limit int) ([]*types.SightingEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, reporter_id, lat, lon, COALESCE(message, ''), created_at
		 FROM (
		     SELECT *,
		            2 * 6371 * asin(sqrt(
		                pow(sin(radians(lat - $1) / 2), 2) +
		                cos(radians($1)) * cos(radians(lat)) *
		                pow(sin(radians(lon - $2) / 2), 2)
		            )) AS distance_km
		     FROM sightings
		     WHERE created_at >= $4
		 ) s
		 WHERE distance_km <= $3
		 ORDER BY distance_km ASC, created_at DESC
		 LIMIT $5`,
		lat, lon, radiusKm, since, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list nearby sightings", err)
	}
	defer rows.Close()

	var results []*types.SightingEvent
	for rows.Next() {
		var s types.SightingEvent
		if err := rows.Scan(&s.ID, &s.ReporterID, &s.Lat, &s.Lon, &s.Message, &s.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan sighting row", err)
		}
		results = append(results, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating sighting rows", err)
	}

	return results, nil
}
