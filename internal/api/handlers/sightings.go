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

// --- Service Interfaces ---

// SightingStore defines the data access contract for sightings.
type SightingStore interface {
	Create(ctx context.Context, s *types.SightingEvent) error
	GetByID(ctx context.Context, id string) (*types.SightingEvent, error)
	ListNearby(ctx context.Context, lat, lon, radiusKm float64, since time.Time, limit int) ([]*types.SightingEvent, error)
}

// AlertDispatcher fans a triggering event out to nearby users.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, event types.AlertEvent) (*types.DispatchReport, error)
}

// ResponseCache is the read-through cache slice used by GET handlers.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// --- Request/Response Models ---

// CreateSightingRequest is the request body for POST /v1/sightings.
type CreateSightingRequest struct {
	ReporterID string  `json:"reporter_id" validate:"required"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Message    string  `json:"message,omitempty" validate:"max=280"`
}

// CreateSightingResponse couples the stored sighting with its fan-out report.
type CreateSightingResponse struct {
	Sighting *types.SightingEvent  `json:"sighting"`
	Dispatch *types.DispatchReport `json:"dispatch"`
}

// NearbySightingsResponse is the body of GET /v1/sightings/nearby.
type NearbySightingsResponse struct {
	Sightings []*types.SightingEvent `json:"sightings"`
	Count     int                    `json:"count"`
}

// Nearby query defaults.
const (
	defaultNearbyRadiusKm = 10.0
	maxNearbyRadiusKm     = 100.0
	nearbyWindow          = 24 * time.Hour
	nearbyCacheTTL        = time.Minute
)

// --- Handler ---

// SightingHandler serves sighting reports and the nearby read path.
type SightingHandler struct {
	sightings  SightingStore
	dispatcher AlertDispatcher
	cache      ResponseCache
	validator  *core.Validator
	clock      types.Clock
	logger     *slog.Logger
}

// NewSightingHandler creates a SightingHandler. cache may be nil; a nil
// clock means real time.
func NewSightingHandler(
	sightings SightingStore,
	dispatcher AlertDispatcher,
	responseCache ResponseCache,
	v *core.Validator,
	clock types.Clock,
	logger *slog.Logger,
) *SightingHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SightingHandler{
		sightings:  sightings,
		dispatcher: dispatcher,
		cache:      responseCache,
		validator:  v,
		clock:      clock,
		logger:     logger,
	}
}

// RegisterRoutes mounts sighting routes onto the provided router.
func (h *SightingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sightings", h.Create)
	r.Get("/sightings/nearby", h.Nearby)
	r.Get("/sightings/{sightingID}", h.Get)
}

// Get handles GET /v1/sightings/{sightingID}.
func (h *SightingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sightingID")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "sighting id is required", nil))
		return
	}

	sighting, err := h.sightings.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: sighting})
}

// Create handles POST /v1/sightings: validate, persist, then fan the alert
// out to nearby users. The response carries the complete dispatch report, so
// by the time the reporter sees it every recipient has a terminal outcome.
func (h *SightingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSightingRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := types.ValidateCoordinates(req.Lat, req.Lon); err != nil {
		core.Error(w, r, err)
		return
	}

	sighting := &types.SightingEvent{
		ReporterID: req.ReporterID,
		Lat:        req.Lat,
		Lon:        req.Lon,
		Message:    req.Message,
		CreatedAt:  h.clock.Now(),
	}

	if err := h.sightings.Create(r.Context(), sighting); err != nil {
		core.Error(w, r, err)
		return
	}

	report, err := h.dispatcher.Dispatch(r.Context(), sighting)
	if err != nil {
		// The sighting is stored; surface the fan-out failure to the reporter.
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: CreateSightingResponse{
		Sighting: sighting,
		Dispatch: report,
	}})
}

// Nearby handles GET /v1/sightings/nearby?lat=..&lon=..&radius_km=..
// Responses are cached by rounded request signature; a fan-out invalidates
// the whole prefix so fresh sightings appear immediately.
func (h *SightingHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoordinates(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	radiusKm := defaultNearbyRadiusKm
	if raw := r.URL.Query().Get("radius_km"); raw != "" {
		radiusKm, err = strconv.ParseFloat(raw, 64)
		if err != nil || radiusKm <= 0 || radiusKm > maxNearbyRadiusKm {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"radius_km must be a number in (0, 100]",
				nil,
			))
			return
		}
	}

	key := cache.Signature(cache.PrefixNearbySightings, lat, lon, radiusKm)
	if h.cache != nil {
		if body, hit := h.cache.Get(r.Context(), key); hit {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}
	}

	since := h.clock.Now().Add(-nearbyWindow)
	sightings, err := h.sightings.ListNearby(r.Context(), lat, lon, radiusKm, since, 50)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if sightings == nil {
		sightings = []*types.SightingEvent{}
	}

	resp := core.APIResponse{Data: NearbySightingsResponse{
		Sightings: sightings,
		Count:     len(sightings),
	}}

	if h.cache != nil {
		if body, marshalErr := json.Marshal(resp); marshalErr == nil {
			h.cache.Set(r.Context(), key, body, nearbyCacheTTL)
		}
	}

	core.JSON(w, r, http.StatusOK, resp)
}

// parseCoordinates extracts and validates lat/lon query parameters.
func parseCoordinates(r *http.Request) (float64, float64, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return 0, 0, types.NewAppError(types.ErrCodeValidationInvalidLat, "lat must be a number", err)
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		return 0, 0, types.NewAppError(types.ErrCodeValidationInvalidLon, "lon must be a number", err)
	}
	if err := types.ValidateCoordinates(lat, lon); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}
