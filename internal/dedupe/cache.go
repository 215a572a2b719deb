// Package dedupe suppresses re-indexing of company records the worker has
// already pushed recently. BOAMP republishes notices and search jobs overlap,
// so the same notice/company pair shows up many times within a run.
package dedupe

import (
	"sync"
	"time"
)

type stamp struct {
	id string
	at time.Time
}

// Cache remembers recently indexed record ids inside a ttl window, bounded by
// a fixed capacity.
type Cache struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	order    []stamp
	capacity int
	ttl      time.Duration
}

// NewCache builds a cache. Non-positive capacity or ttl fall back to safe
// minimums.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		seen:     make(map[string]time.Time, capacity),
		order:    make([]stamp, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Seen reports whether the record id was remembered inside the ttl window.
// It never records; pair it with Remember after a successful index.
func (c *Cache) Seen(id string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.seen[id]
	return ok && now.Sub(at) <= c.ttl
}

// Remember records that a record id has been indexed.
func (c *Cache) Remember(id string) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen[id] = now
	c.order = append(c.order, stamp{id: id, at: now})
	c.evict(now)
}

func (c *Cache) evict(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.seen) > c.capacity || c.order[0].at.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if at, ok := c.seen[oldest.id]; ok && at == oldest.at {
			delete(c.seen, oldest.id)
		}
	}
}
