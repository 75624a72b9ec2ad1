// Package core provides the API chassis for the rainbowatch service: a chi
// router with the cross-cutting middleware chain (recovery, timeouts, request
// IDs, logging, CORS, metrics) applied before requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rainbowatch/internal/config"
)

// MetricsCollector records API request telemetry. Satisfied by
// observability.Metrics.
type MetricsCollector interface {
	RecordRequest(method, path, status string, duration time.Duration)
}

// Pinger is the liveness slice of the database pool used by the health
// endpoint. Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server encapsulates the chassis dependencies, allowing injection during
// testing and distinct configuration for different environments.
type Server struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics MetricsCollector
	DB      Pinger

	// V1RouteRegistrars are populated by the application entry point so domain
	// handler packages can register under /v1 without core importing them.
	V1RouteRegistrars []func(chi.Router)

	// MetricsHandler serves the /metrics endpoint when set (promhttp).
	MetricsHandler http.Handler

	router *chi.Mux
}

// NewServer initializes the chassis. The caller mounts routes afterwards via
// MountRoutes; the separation lets tests customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
