package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rainbowatch/internal/core"
	"rainbowatch/internal/types"
)

// --- Service Interfaces ---

// LocationIndex is the slice of the geo index the user handler needs:
// update a position and check first-time registration.
type LocationIndex interface {
	Upsert(ctx context.Context, userID string, lat, lon float64) error
	Contains(userID string) bool
}

// WelcomeSender delivers the one-time welcome notification.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, userID string) (*types.NotificationRecord, error)
}

// TokenRegistrar stores a user's push delivery channel.
type TokenRegistrar interface {
	Register(ctx context.Context, userID, token string, now time.Time) error
}

// --- Request/Response Models ---

// UpdateLocationRequest is the request body for PUT /v1/users/{userID}/location.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// UpdateLocationResponse reports whether this update registered a new user.
type UpdateLocationResponse struct {
	UserID  string `json:"user_id"`
	Created bool   `json:"created"`
}

// RegisterTokenRequest is the request body for PUT /v1/users/{userID}/token.
type RegisterTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// --- Handler ---

// UserHandler serves per-user location and delivery channel registration.
type UserHandler struct {
	index     LocationIndex
	welcome   WelcomeSender
	tokens    TokenRegistrar
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewUserHandler creates a UserHandler. welcome may be nil to disable the
// first-registration notification.
func NewUserHandler(
	index LocationIndex,
	welcome WelcomeSender,
	tokens TokenRegistrar,
	v *core.Validator,
	clock types.Clock,
	logger *slog.Logger,
) *UserHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		index:     index,
		welcome:   welcome,
		tokens:    tokens,
		validator: v,
		clock:     clock,
		logger:    logger,
	}
}

// RegisterRoutes mounts user routes onto the provided router.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Put("/users/{userID}/location", h.UpdateLocation)
	r.Put("/users/{userID}/token", h.RegisterToken)
}

// UpdateLocation handles PUT /v1/users/{userID}/location. A first-time
// registration triggers the welcome notification; updates replace the prior
// position with no history retained.
func (h *UserHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingUserID, "user id must not be empty", nil))
		return
	}

	var req UpdateLocationRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	isNew := !h.index.Contains(userID)

	if err := h.index.Upsert(r.Context(), userID, req.Lat, req.Lon); err != nil {
		core.Error(w, r, err)
		return
	}

	if isNew && h.welcome != nil {
		if _, err := h.welcome.SendWelcome(r.Context(), userID); err != nil {
			// Registration already succeeded; the welcome is best-effort.
			h.logger.Warn("welcome notification failed", "user_id", userID, "error", err)
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: UpdateLocationResponse{
		UserID:  userID,
		Created: isNew,
	}})
}

// RegisterToken handles PUT /v1/users/{userID}/token.
func (h *UserHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingUserID, "user id must not be empty", nil))
		return
	}

	var req RegisterTokenRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.tokens.Register(r.Context(), userID, req.Token, h.clock.Now()); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"user_id": userID}})
}
