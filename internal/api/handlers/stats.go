package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"rainbowatch/internal/cache"
	"rainbowatch/internal/core"
	"rainbowatch/internal/types"
)

// PredictionStats aggregates persisted predictions over a window.
type PredictionStatsStore interface {
	Stats(ctx context.Context, since time.Time) (*types.PredictionStats, error)
}

const (
	defaultStatsWindowHours = 24
	maxStatsWindowHours     = 24 * 30
	statsCacheTTL           = 5 * time.Minute
)

// StatsHandler serves the prediction stats read path.
type StatsHandler struct {
	predictions PredictionStatsStore
	cache       ResponseCache
	clock       types.Clock
	logger      *slog.Logger
}

// NewStatsHandler creates a StatsHandler. cache may be nil.
func NewStatsHandler(predictions PredictionStatsStore, responseCache ResponseCache, clock types.Clock, logger *slog.Logger) *StatsHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{
		predictions: predictions,
		cache:       responseCache,
		clock:       clock,
		logger:      logger,
	}
}

// RegisterRoutes mounts stats routes onto the provided router.
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/predictions/stats", h.Stats)
}

// Stats handles GET /v1/predictions/stats?window_hours=24.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	windowHours := defaultStatsWindowHours
	if raw := r.URL.Query().Get("window_hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxStatsWindowHours {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"window_hours must be an integer between 1 and 720",
				nil,
			))
			return
		}
		windowHours = parsed
	}

	key := cache.Signature(cache.PrefixPredictions, "stats", windowHours)
	if h.cache != nil {
		if body, hit := h.cache.Get(r.Context(), key); hit {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}
	}

	since := h.clock.Now().Add(-time.Duration(windowHours) * time.Hour)
	stats, err := h.predictions.Stats(r.Context(), since)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := core.APIResponse{Data: stats}
	if h.cache != nil {
		if body, marshalErr := json.Marshal(resp); marshalErr == nil {
			h.cache.Set(r.Context(), key, body, statsCacheTTL)
		}
	}

	core.JSON(w, r, http.StatusOK, resp)
}
