package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"rainbowatch/internal/types"
)

// PredictionRepository provides data access for the predictions table. Every
// persisted score result gets a prefixed UUID so notification records can
// reference the exact prediction that triggered them.
type PredictionRepository struct {
	db DBTX
}

// NewPredictionRepository creates a PredictionRepository backed by the given
// database connection (pool or transaction).
func NewPredictionRepository(db DBTX) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// NewPredictionID returns a fresh prefixed prediction identifier.
func NewPredictionID() string {
	return "prd_" + uuid.NewString()
}

// Insert persists a score result. If result.PredictionID is empty a prefixed
// UUID is assigned before the insert, so a persisted result always carries a
// stable reference. The full observation is stored as JSONB for later audit.
func (r *PredictionRepository) Insert(ctx context.Context, result *types.ScoreResult) error {
	if result.PredictionID == "" {
		result.PredictionID = NewPredictionID()
	}

	observation, err := json.Marshal(result.Observation)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode observation", err)
	}
	bands, err := json.Marshal(result.Bands)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode score bands", err)
	}

	var lat, lon any
	if result.Observation.Origin != nil {
		lat = result.Observation.Origin.Lat
		lon = result.Observation.Origin.Lon
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO predictions
		 (id, probability, tier, bands, recommendation, conditions_summary,
		  observation, lat, lon, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		result.PredictionID,
		result.Probability,
		string(result.Tier),
		bands,
		result.Recommendation,
		result.ConditionsSummary,
		observation,
		lat,
		lon,
		result.ComputedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert prediction", err)
	}
	return nil
}

// Stats aggregates predictions computed since the cutoff.
func (r *PredictionRepository) Stats(ctx context.Context, since time.Time) (*types.PredictionStats, error) {
	row := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(AVG(probability), 0),
		        COUNT(*) FILTER (WHERE tier = $2),
		        COUNT(*) FILTER (WHERE tier = $3)
		 FROM predictions
		 WHERE computed_at >= $1`,
		since,
		string(types.TierHigh),
		string(types.TierLow),
	)

	stats := &types.PredictionStats{Since: since}
	if err := row.Scan(&stats.Total, &stats.MeanProbability, &stats.HighTierCount, &stats.LowTierCount); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to aggregate prediction stats", err)
	}
	return stats, nil
}
