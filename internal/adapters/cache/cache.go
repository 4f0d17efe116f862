// Package cache provides a TTL-bounded in-memory key/value store used to
// avoid redundant external source calls.
//
// Entries expire lazily on read; a janitor goroutine additionally sweeps
// expired entries on a fixed interval so that keys that are never read
// again do not accumulate forever. The store is unbounded by entry count:
// key diversity is limited by the variety of external queries, and the
// cache lives as long as the process. A size/LRU bound is a known
// hardening gap for multi-instance deployments (see DESIGN.md).
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/okian/torp/pkg/metrics"
)

// Default TTLs per data class. External sources refresh at very different
// cadences: official registries change rarely, price references daily-ish,
// geographic data almost never.
const (
	defaultTTL         = 30 * time.Minute
	companyTTL         = 24 * time.Hour
	priceTTL           = 6 * time.Hour
	geoTTL             = 7 * 24 * time.Hour
	defaultSweepPeriod = time.Hour
)

// Class categorizes cached data by the refresh cadence of its origin.
type Class int

const (
	ClassDefault Class = iota
	ClassCompany
	ClassPrice
	ClassGeo
)

// entry is a stored value with its expiry metadata.
type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return now.After(e.createdAt.Add(e.ttl))
}

// Cache is a mutex-guarded TTL map. Safe for concurrent use.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]

	classTTL    map[Class]time.Duration
	sweepPeriod time.Duration
	now         func() time.Time

	janitorOnce sync.Once
	janitorStop chan struct{}
}

// Option applies a configuration option to the Cache.
type Option[V any] func(*Cache[V])

// WithClassTTL overrides the default TTL for a data class.
func WithClassTTL[V any](c Class, ttl time.Duration) Option[V] {
	return func(ca *Cache[V]) {
		if ttl > 0 {
			ca.classTTL[c] = ttl
		}
	}
}

// WithSweepPeriod sets the janitor sweep interval.
func WithSweepPeriod[V any](d time.Duration) Option[V] {
	return func(ca *Cache[V]) {
		if d > 0 {
			ca.sweepPeriod = d
		}
	}
}

// WithClock injects a clock, used by tests to control expiry.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(ca *Cache[V]) {
		if now != nil {
			ca.now = now
		}
	}
}

// New creates an empty cache with per-class default TTLs.
func New[V any](opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		entries: make(map[string]entry[V]),
		classTTL: map[Class]time.Duration{
			ClassDefault: defaultTTL,
			ClassCompany: companyTTL,
			ClassPrice:   priceTTL,
			ClassGeo:     geoTTL,
		},
		sweepPeriod: defaultSweepPeriod,
		now:         time.Now,
		janitorStop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured TTL for a data class.
func (c *Cache[V]) TTL(class Class) time.Duration {
	if ttl, ok := c.classTTL[class]; ok {
		return ttl
	}
	return c.classTTL[ClassDefault]
}

// Get returns the cached value for key if present and not expired.
// An expired entry is evicted as a side effect and reported as a miss.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		metrics.RecordCacheMiss()
		var zero V
		return zero, false
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have
		// refreshed the entry since the read above.
		if cur, still := c.entries[key]; still && cur.expired(c.now()) {
			delete(c.entries, key)
			metrics.RecordCacheEviction()
		}
		c.mu.Unlock()
		metrics.RecordCacheMiss()
		var zero V
		return zero, false
	}
	metrics.RecordCacheHit()
	return e.value, true
}

// Set stores value under key with the TTL of the given data class,
// resetting expiry from the call time.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, class Class) {
	c.SetTTL(ctx, key, value, c.TTL(class))
}

// SetTTL stores value under key with an explicit TTL.
func (c *Cache[V]) SetTTL(_ context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.classTTL[ClassDefault]
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, createdAt: c.now(), ttl: ttl}
	c.mu.Unlock()
}

// Delete removes key from the cache.
func (c *Cache[V]) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache[V]) Clear(_ context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len(_ context.Context) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes all expired entries and returns how many were removed.
func (c *Cache[V]) Cleanup(_ context.Context) int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		for i := 0; i < removed; i++ {
			metrics.RecordCacheEviction()
		}
	}
	return removed
}

// StartJanitor launches the periodic best-effort sweep. It stops when ctx
// is canceled or StopJanitor is called. Calling it more than once is a
// no-op.
func (c *Cache[V]) StartJanitor(ctx context.Context) {
	c.janitorOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(c.sweepPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-c.janitorStop:
					return
				case <-ticker.C:
					c.Cleanup(ctx)
				}
			}
		}()
	})
}

// StopJanitor stops the sweep goroutine if running.
func (c *Cache[V]) StopJanitor() {
	select {
	case <-c.janitorStop:
	default:
		close(c.janitorStop)
	}
}
