package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/go-redirector/internal/redirect"
)

// sweepEvery bounds how many writes may pass between expired-entry sweeps.
const sweepEvery = 256

type cacheEntry struct {
	value     []byte
	ttl       time.Duration
	expiresAt time.Time
}

// MemoryCache is an in-process redirect.Cache with sliding expiration.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	writes  int
	now     func() time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithClock(time.Now)
}

// NewMemoryCacheWithClock creates an in-memory cache reading time from now.
func NewMemoryCacheWithClock(now func() time.Time) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*cacheEntry),
		now:     now,
	}
}

// Get returns the value for key and pushes its expiration forward by its ttl.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, redirect.ErrCacheMiss
	}

	now := c.now()
	if entry.expired(now) {
		delete(c.entries, key)

		return nil, redirect.ErrCacheMiss
	}

	if entry.ttl > 0 {
		entry.expiresAt = now.Add(entry.ttl)
	}

	return append([]byte(nil), entry.value...), nil
}

// Set stores value under key. A non-positive ttl never expires.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	entry := &cacheEntry{
		value: append([]byte(nil), value...),
		ttl:   ttl,
	}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}

	c.entries[key] = entry

	c.writes++
	if c.writes%sweepEvery == 0 {
		for k, e := range c.entries {
			if e.expired(now) {
				delete(c.entries, k)
			}
		}
	}

	return nil
}

func (c *MemoryCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	return nil
}

// Len returns the number of entries currently held, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (e *cacheEntry) expired(now time.Time) bool {
	return e.ttl > 0 && !now.Before(e.expiresAt)
}

var _ redirect.Cache = (*MemoryCache)(nil)
