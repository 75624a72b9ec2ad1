// Package handlers contains the HTTP handler implementations for the
// rainbowatch API. Each handler declares the narrow service interfaces it
// needs locally, so concrete types stay injectable and testable.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rainbowatch/internal/core"
	"rainbowatch/internal/scoring"
	"rainbowatch/internal/types"
)

// --- Service Interfaces ---

// PredictionStore persists computed score results.
type PredictionStore interface {
	Insert(ctx context.Context, result *types.ScoreResult) error
}

// ScoreRecorder receives per-score observations. Satisfied by
// observability.Metrics; nil disables recording.
type ScoreRecorder interface {
	RecordScore(tier string)
}

// --- Request/Response Models ---

// ScoreRequest is the request body for POST /v1/score. Either an inline
// observation or a coordinate to fetch current conditions for; an inline
// observation wins when both are present.
type ScoreRequest struct {
	Lat         *float64                  `json:"lat,omitempty"`
	Lon         *float64                  `json:"lon,omitempty"`
	Observation *types.WeatherObservation `json:"observation,omitempty"`
}

// BatchScoreRequest is the request body for POST /v1/score/batch.
type BatchScoreRequest struct {
	Observations []types.WeatherObservation `json:"observations" validate:"required,min=1"`
}

// BatchScoreItem is one entry of the batch response. Exactly one of Result
// and Error is set.
type BatchScoreItem struct {
	Result *types.ScoreResult `json:"result,omitempty"`
	Error  *core.ErrorDetail  `json:"error,omitempty"`
}

// ForecastRequest is the request body for POST /v1/score/forecast. The
// observation resolves like ScoreRequest; ForecastHours defaults to 24 and
// is capped at 168 (7 days).
type ForecastRequest struct {
	Lat           *float64                  `json:"lat,omitempty"`
	Lon           *float64                  `json:"lon,omitempty"`
	Observation   *types.WeatherObservation `json:"observation,omitempty"`
	ForecastHours int                       `json:"forecast_hours,omitempty"`
}

// --- Handler ---

// ScoreHandler serves on-demand occurrence scoring.
type ScoreHandler struct {
	scorer      scoring.Scorer
	source      types.ObservationSource
	predictions PredictionStore
	recorder    ScoreRecorder
	logger      *slog.Logger
}

// NewScoreHandler creates a ScoreHandler. source, predictions, and recorder
// may be nil; a nil source disables coordinate-based requests.
func NewScoreHandler(
	scorer scoring.Scorer,
	source types.ObservationSource,
	predictions PredictionStore,
	recorder ScoreRecorder,
	logger *slog.Logger,
) *ScoreHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreHandler{
		scorer:      scorer,
		source:      source,
		predictions: predictions,
		recorder:    recorder,
		logger:      logger,
	}
}

// RegisterRoutes mounts scoring routes onto the provided router.
func (h *ScoreHandler) RegisterRoutes(r chi.Router) {
	r.Post("/score", h.Score)
	r.Post("/score/batch", h.ScoreBatch)
	r.Post("/score/forecast", h.Forecast)
}

// Score handles POST /v1/score. The result is persisted so that prediction
// stats and alert trigger references stay complete.
func (h *ScoreHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	obs, err := h.resolveObservation(r.Context(), &req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.scorer.Score(*obs)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordScore(string(result.Tier))
	}

	if h.predictions != nil {
		if err := h.predictions.Insert(r.Context(), result); err != nil {
			// Scoring succeeded; a stats gap is preferable to a failed request.
			h.logger.Error("failed to persist prediction", "error", err)
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// ScoreBatch handles POST /v1/score/batch. Items are scored independently;
// one invalid observation yields an error entry at its index without failing
// the rest.
func (h *ScoreHandler) ScoreBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchScoreRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if len(req.Observations) == 0 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"observations must not be empty",
			nil,
		))
		return
	}

	results, errs, err := scoring.ScoreBatch(h.scorer, req.Observations)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	items := make([]BatchScoreItem, len(results))
	for i := range results {
		if errs[i] != nil {
			items[i] = BatchScoreItem{Error: errorDetail(errs[i])}
			continue
		}
		items[i] = BatchScoreItem{Result: results[i]}
		if h.recorder != nil {
			h.recorder.RecordScore(string(results[i].Tier))
		}
		if h.predictions != nil {
			if insErr := h.predictions.Insert(r.Context(), results[i]); insErr != nil {
				h.logger.Error("failed to persist batch prediction", "index", i, "error", insErr)
			}
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: items})
}

// Forecast handles POST /v1/score/forecast: an hour-stepped projection of
// the resolved observation with peak probability windows. Forecast points
// are projections, not observations, so they are never persisted as
// predictions and never recorded as computed scores.
func (h *ScoreHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	var req ForecastRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	obs, err := h.resolveObservation(r.Context(), &ScoreRequest{
		Lat:         req.Lat,
		Lon:         req.Lon,
		Observation: req.Observation,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	hours := req.ForecastHours
	if hours == 0 {
		hours = scoring.DefaultForecastHours
	}

	forecast, err := scoring.ForecastSeries(h.scorer, *obs, hours, nil)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: forecast})
}

// resolveObservation returns the inline observation, or fetches current
// conditions for the given coordinate.
func (h *ScoreHandler) resolveObservation(ctx context.Context, req *ScoreRequest) (*types.WeatherObservation, error) {
	if req.Observation != nil {
		return req.Observation, nil
	}

	if req.Lat == nil || req.Lon == nil {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"either an observation or lat/lon coordinates are required",
			nil,
		)
	}
	if h.source == nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			"no observation source configured for coordinate-based scoring",
			nil,
		)
	}

	return h.source.Current(ctx, *req.Lat, *req.Lon)
}

// errorDetail flattens an error for inclusion inside a 200 batch response.
func errorDetail(err error) *core.ErrorDetail {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return &core.ErrorDetail{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Details: appErr.Details,
		}
	}
	return &core.ErrorDetail{
		Code:    string(types.ErrCodeInternalUnexpected),
		Message: "scoring failed",
	}
}
