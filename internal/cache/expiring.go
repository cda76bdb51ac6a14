package cache

import (
	"sync"
	"time"
)

// Expiring is an in-memory store for values with an absolute expiry, such as
// provider access tokens. Get treats entries inside the refresh window as
// already expired so callers renew before the hard deadline.
type Expiring[K comparable, V any] struct {
	mu            sync.RWMutex
	refreshWindow time.Duration
	items         map[K]entry[V]
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewExpiring constructs a cache that considers entries stale once less than
// refreshWindow of their validity remains.
func NewExpiring[K comparable, V any](refreshWindow time.Duration) *Expiring[K, V] {
	return &Expiring[K, V]{
		refreshWindow: refreshWindow,
		items:         make(map[K]entry[V]),
	}
}

// Get returns a cached value while it is still comfortably valid at now.
func (c *Expiring[K, V]) Get(key K, now time.Time) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if !now.Add(c.refreshWindow).Before(e.expiresAt) {
		c.Delete(key)
		return zero, false
	}
	return e.value, true
}

// Set stores a value valid until expiresAt.
func (c *Expiring[K, V]) Set(key K, value V, expiresAt time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Delete removes a key.
func (c *Expiring[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}
