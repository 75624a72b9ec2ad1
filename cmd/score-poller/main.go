// Package main is the entry point for the score poller.
//
// On a fixed interval it fetches the current observation for each configured
// site, scores it, persists the prediction, and hands the result to the
// dispatcher. The dispatcher applies the probability gate, so low-confidence
// predictions are recorded but never fan out.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rainbowatch/internal/config"
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

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Weather.BaseURL == "" {
		return fmt.Errorf("WEATHER_BASE_URL is required for the score poller")
	}

	sites, err := cfg.Weather.ParseSites()
	if err != nil {
		return fmt.Errorf("parsing WEATHER_SITES: %w", err)
	}
	if len(sites) == 0 {
		return fmt.Errorf("WEATHER_SITES must name at least one site")
	}

	logger := newLogger(cfg.LogLevel)
	adapted := &slogAdapter{logger: logger}
	logger.Info("score poller starting",
		"environment", cfg.Environment,
		"sites", len(sites),
		"interval", cfg.Weather.PollInterval.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Reveal())
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	metrics := observability.NewMetrics()

	locations := db.NewLocationRepository(pool)
	notifications := db.NewNotificationRepository(pool)
	predictions := db.NewPredictionRepository(pool)
	tokens := db.NewTokenRepository(pool)

	index := geo.NewIndex(adapted, geo.WithStore(locations))
	if err := index.Hydrate(ctx); err != nil {
		return fmt.Errorf("hydrating location index: %w", err)
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
		nil,
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

	source := weather.NewClient(weather.Config{
		BaseURL: cfg.Weather.BaseURL,
		APIKey:  cfg.Weather.APIKey,
	}, nil)

	poller := &poller{
		sites:       sites,
		source:      source,
		scorer:      scoring.NewRuleScorer(nil),
		predictions: predictions,
		dispatcher:  dispatcher,
		recorder:    metrics,
		logger:      logger,
	}

	// Score once on startup so a fresh deployment does not wait a full
	// interval before producing its first prediction.
	poller.pollAll(ctx)

	ticker := time.NewTicker(cfg.Weather.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			return nil
		case <-ticker.C:
			poller.pollAll(ctx)
		}
	}
}

// predictionWriter is the slice of the prediction repository the poller needs.
type predictionWriter interface {
	Insert(ctx context.Context, result *types.ScoreResult) error
}

// alertDispatcher is the dispatch capability the poller hands results to.
type alertDispatcher interface {
	Dispatch(ctx context.Context, event types.AlertEvent) (*types.DispatchReport, error)
}

// scoreRecorder counts computed scores by tier. May be nil.
type scoreRecorder interface {
	RecordScore(tier string)
}

// poller holds the per-cycle dependencies.
type poller struct {
	sites       []types.Location
	source      types.ObservationSource
	scorer      scoring.Scorer
	predictions predictionWriter
	dispatcher  alertDispatcher
	recorder    scoreRecorder
	logger      *slog.Logger
}

// pollAll runs one scoring cycle over every site. A failure at one site is
// logged and does not stop the remaining sites.
func (p *poller) pollAll(ctx context.Context) {
	for _, site := range p.sites {
		if ctx.Err() != nil {
			return
		}
		if err := p.pollSite(ctx, site); err != nil {
			p.logger.Error("site poll failed",
				"lat", site.Lat,
				"lon", site.Lon,
				"error", err,
			)
		}
	}
}

func (p *poller) pollSite(ctx context.Context, site types.Location) error {
	obs, err := p.source.Current(ctx, site.Lat, site.Lon)
	if err != nil {
		return fmt.Errorf("fetching observation: %w", err)
	}

	result, err := p.scorer.Score(*obs)
	if err != nil {
		return fmt.Errorf("scoring observation: %w", err)
	}
	if p.recorder != nil {
		p.recorder.RecordScore(string(result.Tier))
	}

	if err := p.predictions.Insert(ctx, result); err != nil {
		return fmt.Errorf("persisting prediction: %w", err)
	}

	report, err := p.dispatcher.Dispatch(ctx, result)
	if err != nil {
		return fmt.Errorf("dispatching prediction alert: %w", err)
	}

	p.logger.Info("site scored",
		"lat", site.Lat,
		"lon", site.Lon,
		"prediction_id", result.PredictionID,
		"probability", result.Probability,
		"tier", result.Tier,
		"dispatch_status", report.Status,
		"delivered", report.Delivered,
	)
	return nil
}

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
