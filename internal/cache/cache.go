package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc produces a fresh value for a cache key.
type FetchFunc func(ctx context.Context) (any, error)

// Entry is one cached value with its expiry bookkeeping.
type Entry struct {
	Value     any
	FetchedAt time.Time
	TTL       time.Duration
	HitCount  int64
}

// valid reports whether the entry is still within its TTL.
func (e *Entry) valid(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

// Stats are the read-only hit/miss counters of a cache.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Cache is a keyed TTL cache. Expiry is lazy: entries are checked on read and
// refreshed synchronously through the fetch function of the first reader.
// Concurrent reads of the same missing or expired key are coalesced into a
// single upstream fetch.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	group   singleflight.Group
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// GetOrFetch returns the cached value for key, fetching it when absent or
// expired. While a fetch for the key is in flight, other callers wait on its
// result instead of issuing duplicate upstream calls. Waiting is bounded by
// the caller's context.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fn FetchFunc) (any, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}
	c.misses.Add(1)

	ch := c.group.DoChan(key, func() (any, error) {
		// Re-check: a waiter queued behind a completed flight may find
		// the entry already refreshed.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.put(key, v, ttl)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val, nil
	case <-ctx.Done():
		// The in-flight fetch keeps running and will populate the cache;
		// only this caller gives up.
		return nil, ctx.Err()
	}
}

// lookup returns a valid entry's value and bumps its hit count.
func (c *Cache) lookup(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !e.valid(time.Now()) {
		return nil, false
	}
	c.mu.Lock()
	e.HitCount++
	c.mu.Unlock()
	c.hits.Add(1)
	return e.Value, true
}

func (c *Cache) put(key string, v any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = &Entry{Value: v, FetchedAt: time.Now(), TTL: ttl}
	c.mu.Unlock()
}

// Invalidate removes every entry matching the predicate and returns how many
// were dropped. Used for manual cache busting, e.g. all entries of one coin
// or all entries older than a cutoff.
func (c *Cache) Invalidate(pred func(key string, e Entry) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for k, e := range c.entries {
		if pred(k, *e) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

// InvalidateOlderThan drops entries fetched before the cutoff.
func (c *Cache) InvalidateOlderThan(cutoff time.Time) int {
	return c.Invalidate(func(_ string, e Entry) bool {
		return e.FetchedAt.Before(cutoff)
	})
}

// Stats returns the hit/miss counters and current entry count.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: n}
}
