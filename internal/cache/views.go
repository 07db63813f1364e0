// Package cache keeps recently computed view results in memory until a
// write to the benchmark database makes them stale.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/qbench/qbench/internal/events"
	"github.com/qbench/qbench/internal/store"
)

// Metrics holds cache statistics for observability.
type Metrics struct {
	Hits          atomic.Int64
	Misses        atomic.Int64
	Invalidations atomic.Int64
}

// ViewCache caches view result sets by view name.
type ViewCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]viewEntry
	// gen advances on every invalidation; loads started under an older
	// generation are not stored.
	gen uint64

	metrics Metrics
}

type viewEntry struct {
	rs       *store.ResultSet
	storedAt time.Time
}

// NewViewCache creates a cache whose entries live for ttl.
func NewViewCache(ttl time.Duration) *ViewCache {
	return &ViewCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]viewEntry),
	}
}

// Load returns the cached result for name, calling load on a miss. The
// second return reports a cache hit.
func (c *ViewCache) Load(name string, load func() (*store.ResultSet, error)) (*store.ResultSet, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[name]
	gen := c.gen
	c.mu.RUnlock()

	if ok && c.now().Sub(e.storedAt) < c.ttl {
		c.metrics.Hits.Add(1)
		return e.rs, true, nil
	}
	c.metrics.Misses.Add(1)

	rs, err := load()
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.entries[name] = viewEntry{rs: rs, storedAt: c.now()}
	}
	c.mu.Unlock()
	return rs, false, nil
}

// Invalidate drops every entry.
func (c *ViewCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]viewEntry)
	c.gen++
	c.mu.Unlock()
	c.metrics.Invalidations.Add(1)
}

// Watch invalidates the cache for every event received on ch and returns
// once ch is closed.
func (c *ViewCache) Watch(ch <-chan events.Event) {
	for range ch {
		c.Invalidate()
	}
}

// Len returns the number of cached views.
func (c *ViewCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns current cache metrics.
func (c *ViewCache) Stats() (hits, misses, invalidations int64) {
	return c.metrics.Hits.Load(), c.metrics.Misses.Load(), c.metrics.Invalidations.Load()
}
