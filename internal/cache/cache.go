// Package cache implements the read-through response cache: TTL-based
// entries keyed by request signature, bulk invalidation by key prefix, and
// full degradation when the backend is unavailable. A broken backend never
// surfaces an error to callers; Get becomes an unconditional miss and
// Set/InvalidatePrefix become no-ops, so callers always fall through to the
// authoritative source.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rainbowatch/internal/types"
)

// Key prefixes for the read paths invalidated after dispatch.
const (
	PrefixNearbySightings = "sightings:nearby:"
	PrefixPredictions     = "predictions:"
)

// Backend is the underlying store. Single-key operations are atomic; reads
// never observe a half-written entry.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

// Recorder receives cache hit/miss observations. Satisfied by
// observability.Metrics; nil disables recording.
type Recorder interface {
	RecordCacheLookup(hit bool)
}

// ResponseCache wraps a Backend with degradation and observability.
type ResponseCache struct {
	backend  Backend
	recorder Recorder
	logger   types.Logger
}

// New creates a ResponseCache. recorder and logger may be nil.
func New(backend Backend, recorder Recorder, logger types.Logger) *ResponseCache {
	return &ResponseCache{backend: backend, recorder: recorder, logger: logger}
}

// Get returns the cached value and whether it was a hit. A hit requires both
// presence and non-expiry. Backend failures degrade to a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.degraded("get", key, err)
		ok = false
		value = nil
	}
	if c.recorder != nil {
		c.recorder.RecordCacheLookup(ok)
	}
	return value, ok
}

// Set stores the value under key for ttl, overwriting any existing entry.
// Backend failures are absorbed.
func (c *ResponseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.backend.Set(ctx, key, value, ttl); err != nil {
		c.degraded("set", key, err)
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns the number removed. Backend failures are absorbed and report zero.
func (c *ResponseCache) InvalidatePrefix(ctx context.Context, prefix string) int {
	n, err := c.backend.DeleteByPrefix(ctx, prefix)
	if err != nil {
		c.degraded("invalidate", prefix, err)
		return 0
	}
	return n
}

func (c *ResponseCache) degraded(op, key string, err error) {
	if c.logger != nil {
		c.logger.Warn("cache backend unavailable, degrading",
			"op", op,
			"key", key,
			"error", err.Error(),
		)
	}
}

// Signature builds a request signature key from a route-scoped prefix and
// value parts. Float parts are rounded to 4 decimal places so nearby
// coordinates share entries.
func Signature(prefix string, parts ...any) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(':')
		}
		switch v := p.(type) {
		case float64:
			fmt.Fprintf(&b, "%.4f", v)
		default:
			fmt.Fprintf(&b, "%v", v)
		}
	}
	return b.String()
}
