// Package main is the entry point for the rainbowatch API server.
//
// It loads configuration, connects the PostgreSQL pool, hydrates the
// in-memory location index, wires the scoring, sighting, user, and stats
// handlers onto the core chassis, and serves HTTP until a shutdown signal
// arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rainbowatch/internal/api/handlers"
	"rainbowatch/internal/cache"
	"rainbowatch/internal/config"
	"rainbowatch/internal/core"
	"rainbowatch/internal/db"
	"rainbowatch/internal/dispatch"
	"rainbowatch/internal/geo"
	"rainbowatch/internal/observability"
	"rainbowatch/internal/push"
	"rainbowatch/internal/scoring"
	"rainbowatch/internal/types"
	"rainbowatch/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	adapted := &slogAdapter{logger: logger}
	logger.Info("rainbowatch API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	metrics := observability.NewMetrics()

	// Repositories.
	locations := db.NewLocationRepository(pool)
	sightings := db.NewSightingRepository(pool)
	notifications := db.NewNotificationRepository(pool)
	predictions := db.NewPredictionRepository(pool)
	tokens := db.NewTokenRepository(pool)

	// The location index serves every radius query in-process. It must be
	// warm before the first dispatch, so a failed hydrate aborts startup.
	index := geo.NewIndex(adapted, geo.WithStore(locations))
	if err := index.Hydrate(ctx); err != nil {
		return fmt.Errorf("hydrating location index: %w", err)
	}
	logger.Info("location index hydrated", "locations", index.Len())

	var responseCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		backend := cache.NewMemoryBackend(cfg.Cache.DefaultTTL, cfg.Cache.CleanupInterval)
		responseCache = cache.New(backend, metrics, adapted)
	}

	sender := push.NewHTTPSender(push.Config{
		BaseURL:       cfg.Push.BaseURL,
		APIKey:        cfg.Push.APIKey,
		RatePerSecond: cfg.Push.RatePerSecond,
		Burst:         cfg.Push.Burst,
	}, adapted)

	dispatcher := dispatch.NewDispatcher(
		index,
		tokens,
		sender,
		notifications,
		cacheInvalidator(responseCache),
		metrics,
		adapted,
		nil,
		dispatch.Config{
			SightingRadiusKm:     cfg.Dispatch.SightingRadiusKm,
			PredictionRadiusKm:   cfg.Dispatch.PredictionRadiusKm,
			ProbabilityThreshold: cfg.Dispatch.ProbabilityThreshold,
			Concurrency:          cfg.Dispatch.Concurrency,
			DeliveryTimeout:      cfg.Dispatch.DeliveryTimeout,
		},
	)

	// Coordinate-based scoring requests need an observation source; without
	// a configured provider the endpoint still accepts inline observations.
	var source types.ObservationSource
	if cfg.Weather.BaseURL != "" {
		source = weather.NewClient(weather.Config{
			BaseURL: cfg.Weather.BaseURL,
			APIKey:  cfg.Weather.APIKey,
		}, nil)
	} else {
		logger.Warn("no weather provider configured; coordinate-based scoring disabled")
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.DB = pool
	srv.Metrics = metrics
	srv.MetricsHandler = promhttp.Handler()

	validator := core.NewValidator()
	scoreHandler := handlers.NewScoreHandler(scoring.NewRuleScorer(nil), source, predictions, metrics, logger)
	sightingHandler := handlers.NewSightingHandler(sightings, dispatcher, handlerCache(responseCache), validator, nil, logger)
	userHandler := handlers.NewUserHandler(index, dispatcher, tokens, validator, nil, logger)
	statsHandler := handlers.NewStatsHandler(predictions, handlerCache(responseCache), nil, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		scoreHandler.RegisterRoutes,
		sightingHandler.RegisterRoutes,
		userHandler.RegisterRoutes,
		statsHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(ctx, srv, cfg, logger)
}

// newPool builds the pgx pool from the database config and verifies
// connectivity before the server accepts traffic.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Reveal())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// cacheInvalidator returns the dispatcher's invalidation hook, or nil when
// caching is disabled. A typed nil would defeat the dispatcher's nil check.
func cacheInvalidator(c *cache.ResponseCache) types.CacheInvalidator {
	if c == nil {
		return nil
	}
	return c
}

// handlerCache narrows the response cache to the handler read/write slice,
// again avoiding a typed nil.
func handlerCache(c *cache.ResponseCache) handlers.ResponseCache {
	if c == nil {
		return nil
	}
	return c
}

// runHTTPServer serves until the signal context is canceled or the listener
// fails, then drains in-flight requests within the shutdown timeout.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newLogger builds the process-wide JSON logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// slogAdapter bridges *slog.Logger to the narrow types.Logger interface used
// by packages that must not depend on a concrete logging implementation.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

var _ types.Logger = (*slogAdapter)(nil)
