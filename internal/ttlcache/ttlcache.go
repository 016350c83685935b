// Package ttlcache provides a process-wide read-mostly cache with bounded
// staleness. Values refresh by full replacement, never in-place mutation,
// so concurrent readers always observe a consistent snapshot.
package ttlcache

import (
	"context"
	"sync"
	"time"
)

// Loader fetches a fresh value, typically from the store or a credentials API.
type Loader[T any] func(ctx context.Context) (T, error)

// Cache holds one value of type T and reloads it when the TTL expires.
// A Cache is always injected, never a package global, so tests can supply
// their own loader and clock.
type Cache[T any] struct {
	mu          sync.RWMutex
	ttl         time.Duration
	load        Loader[T]
	value       T
	loaded      bool
	refreshedAt time.Time
	now         func() time.Time
}

// New creates a cache with the given TTL and loader.
func New[T any](ttl time.Duration, load Loader[T]) *Cache[T] {
	return &Cache[T]{
		ttl:  ttl,
		load: load,
		now:  time.Now,
	}
}

// Get returns the cached value, refreshing first if it has expired or was
// never loaded. A failed refresh returns the stale value when one exists,
// so transient store outages never take down a running batch.
func (c *Cache[T]) Get(ctx context.Context) (T, error) {
	c.mu.RLock()
	if c.loaded && c.now().Sub(c.refreshedAt) < c.ttl {
		v := c.value
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	if err := c.Refresh(ctx); err != nil {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.loaded {
			return c.value, nil
		}
		var zero T
		return zero, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, nil
}

// Refresh forces a reload regardless of TTL.
func (c *Cache[T]) Refresh(ctx context.Context) error {
	v, err := c.load(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.value = v
	c.loaded = true
	c.refreshedAt = c.now()
	c.mu.Unlock()
	return nil
}

// LastRefreshed returns the time of the last successful refresh,
// or the zero time if the cache has never loaded.
func (c *Cache[T]) LastRefreshed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// SetClock overrides the time source. Test helper.
func (c *Cache[T]) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}
