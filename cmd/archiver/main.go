// Package main is the entry point for the notification log archiver.
//
// It runs as a one-shot job, typically from cron. Notification records older
// than the configured retention are exported to a gzip-compressed JSONL file
// in the archive directory, then deleted from the database. Each batch is
// flushed to the archive file before its rows are deleted, and the file is
// synced once before the process exits; a run interrupted mid-batch leaves
// the affected rows in the database for the next pass.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/gzip"

	"rainbowatch/internal/config"
	"rainbowatch/internal/db"
	"rainbowatch/internal/types"
)

// batchSize bounds the rows held in memory per export cycle.
const batchSize = 1000

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

	logger := newLogger(cfg.LogLevel)

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

	a := &archiver{
		store:  db.NewNotificationRepository(pool),
		dir:    cfg.Archive.Dir,
		maxAge: cfg.Archive.MaxAge,
		logger: logger,
	}

	summary, err := a.Run(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	logger.Info("archive run complete",
		"archived", summary.Archived,
		"deleted", summary.Deleted,
		"file", summary.File,
	)
	return nil
}

// notificationLog is the slice of the repository the archiver needs.
type notificationLog interface {
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*types.NotificationRecord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// archiver exports and prunes aged notification records.
type archiver struct {
	store  notificationLog
	dir    string
	maxAge time.Duration
	logger *slog.Logger
}

// Summary reports what a run exported and pruned. File is empty when no
// records were old enough to archive.
type Summary struct {
	Archived int
	Deleted  int64
	File     string
}

// Run exports every record older than now-maxAge to a single gzip JSONL file
// and then deletes the exported rows. Records are streamed oldest-first in
// batches; each batch is pruned only after it has been flushed to disk.
func (a *archiver) Run(ctx context.Context, now time.Time) (*Summary, error) {
	cutoff := now.Add(-a.maxAge)

	first, err := a.store.ListOlderThan(ctx, cutoff, 1)
	if err != nil {
		return nil, fmt.Errorf("checking for aged notifications: %w", err)
	}
	if len(first) == 0 {
		return &Summary{}, nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	path := filepath.Join(a.dir, fmt.Sprintf("notifications-%s.jsonl.gz", now.Format("20060102-150405")))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating archive file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)

	summary := &Summary{File: path}
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		batch, err := a.store.ListOlderThan(ctx, cutoff, batchSize)
		if err != nil {
			return nil, fmt.Errorf("listing aged notifications: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		// A full batch may be cut mid-timestamp. Trim trailing records that
		// share the boundary timestamp so the batch prune below cannot
		// delete rows that were never exported.
		if len(batch) == batchSize {
			batch = trimBoundaryTies(batch)
		}

		for _, rec := range batch {
			if err := enc.Encode(rec); err != nil {
				return nil, fmt.Errorf("encoding notification %s: %w", rec.ID, err)
			}
		}
		if err := gz.Flush(); err != nil {
			return nil, fmt.Errorf("flushing archive file: %w", err)
		}
		summary.Archived += len(batch)

		// Everything strictly before the boundary is now on disk.
		boundary := batch[len(batch)-1].SentAt.Add(time.Nanosecond)
		deleted, err := a.store.DeleteOlderThan(ctx, boundary)
		if err != nil {
			return nil, fmt.Errorf("pruning archived notifications: %w", err)
		}
		summary.Deleted += deleted
	}

	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("closing archive stream: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("syncing archive file: %w", err)
	}
	return summary, nil
}

// trimBoundaryTies drops trailing records that share the final timestamp of
// a full batch, so the prune boundary never passes a timestamp that may have
// unexported rows behind it. When the entire batch shares one timestamp
// nothing can be trimmed and the batch is returned unchanged; that requires
// batchSize records within the same microsecond.
func trimBoundaryTies(batch []*types.NotificationRecord) []*types.NotificationRecord {
	last := batch[len(batch)-1].SentAt
	i := len(batch) - 1
	for i > 0 && batch[i-1].SentAt.Equal(last) {
		i--
	}
	if i == 0 {
		return batch
	}
	return batch[:i]
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
