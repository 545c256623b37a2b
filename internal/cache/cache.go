// Package cache provides an in-memory map whose entries expire after a fixed
// time-to-live. Expiry is lazy: an entry is checked when it is read and
// dropped if stale. Nothing sweeps the map in the background.
package cache

import (
	"sync"
	"time"

	"github.com/JakeFAU/websearch-worker/internal/retrieval"
)

type entry[V any] struct {
	createdAt time.Time
	value     V
}

// TTL stores values for at most ttl.
type TTL[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   retrieval.Clock
	entries map[string]entry[V]
}

// New constructs a TTL cache. A nil clock falls back to wall time.
func New[V any](ttl time.Duration, clock retrieval.Clock) *TTL[V] {
	if clock == nil {
		clock = wallClock{}
	}
	return &TTL[V]{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the value stored under key if it is younger than the TTL.
// Expired entries are removed and reported as absent.
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if c.clock.Now().Sub(e.createdAt) >= c.ttl {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.createdAt.Equal(e.createdAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, stamped with the current time.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{createdAt: c.clock.Now(), value: value}
}

// Len reports how many entries are held, stale ones included.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }
