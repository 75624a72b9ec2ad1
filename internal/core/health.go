package core

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each dependency check so a hung database cannot
// hang the health endpoint.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the body of the /healthz endpoint.
type HealthResponse struct {
	Status     string            `json:"status"` // "ok" or "degraded"
	Service    string            `json:"service"`
	Components map[string]string `json:"components"`
}

// HandleHealth reports service liveness and the state of hard dependencies.
// The database being down degrades the response to 503; the endpoint itself
// responding proves the process is alive.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		Service:    s.Config.Service,
		Components: map[string]string{},
	}
	status := http.StatusOK

	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.DB.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Components["database"] = "ok"
		}
	}

	JSON(w, r, status, resp)
}
