package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Compile-time assertion that MemoryBackend implements Backend.
var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend is a Backend on top of an in-process go-cache store.
// Expired entries are never returned as hits: go-cache checks expiry on Get
// and Items, and the janitor goroutine evicts in the background.
type MemoryBackend struct {
	store *gocache.Cache
}

// NewMemoryBackend creates a MemoryBackend. defaultTTL applies when Set is
// called with ttl <= 0; cleanupInterval controls the eviction janitor.
func NewMemoryBackend(defaultTTL, cleanupInterval time.Duration) *MemoryBackend {
	return &MemoryBackend{store: gocache.New(defaultTTL, cleanupInterval)}
}

// Get returns the stored value for key, if present and not expired.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	value, ok := v.([]byte)
	if !ok {
		// Foreign value type counts as a miss rather than an error.
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value under key for ttl. ttl <= 0 uses the default TTL.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	b.store.Set(key, value, ttl)
	return nil
}

// DeleteByPrefix removes every live entry whose key starts with prefix.
// Items() already excludes expired entries, so they do not inflate the count.
func (b *MemoryBackend) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	var removed int
	for key := range b.store.Items() {
		if strings.HasPrefix(key, prefix) {
			b.store.Delete(key)
			removed++
		}
	}
	return removed, nil
}
