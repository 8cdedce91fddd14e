package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sitly-nl/matchsearch/internal/metrics"
)

type countEntry struct {
	value   int
	expires time.Time
}

// CountCache memoizes count-only results per tenant and request key.
// Concurrent misses for the same key share one executor call. Racing
// writers are resolved last-writer-wins.
type CountCache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]countEntry
}

// NewCountCache creates a cache whose entries live for ttl.
func NewCountCache(ttl time.Duration) *CountCache {
	return &CountCache{ttl: ttl, now: time.Now, entries: make(map[string]countEntry)}
}

// WithClock replaces the time source.
func (c *CountCache) WithClock(now func() time.Time) *CountCache {
	c.now = now
	return c
}

// Get returns the cached count for key or calls load and stores its result.
// Errors are not cached. An empty key bypasses the cache.
func (c *CountCache) Get(
	ctx context.Context, tenant, key string, load func(ctx context.Context) (int, error),
) (int, error) {
	if key == "" {
		return load(ctx)
	}
	k := tenant + "\x00" + key

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		metrics.CountCacheTotal.WithLabelValues("hit").Inc()
		return e.value, nil
	}
	metrics.CountCacheTotal.WithLabelValues("miss").Inc()
	if ok {
		c.evict(k)
	}

	v, err, _ := c.group.Do(k, func() (any, error) {
		n, err := load(ctx)
		if err != nil {
			return 0, err
		}
		c.mu.Lock()
		c.entries[k] = countEntry{value: n, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// evict removes k if it is still expired; a concurrent refresh is kept.
func (c *CountCache) evict(k string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[k]; ok && !c.now().Before(e.expires) {
		delete(c.entries, k)
	}
}

// PurgeEvery drops expired entries every interval until ctx is done.
func (c *CountCache) PurgeEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}

// Purge drops expired entries.
func (c *CountCache) Purge() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *CountCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
