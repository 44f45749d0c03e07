// Package cache is a small in-process TTL cache keyed by content hash.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache holds values for a fixed time to live. Expired entries are swept
// on write once the map has grown past the last sweep size.
type Cache[V any] struct {
	mu        sync.RWMutex
	items     map[string]item[V]
	ttl       time.Duration
	now       func() time.Time
	sweepSize int

	hits   int64
	misses int64
}

const minSweepSize = 256

func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		items:     make(map[string]item[V]),
		ttl:       ttl,
		now:       time.Now,
		sweepSize: minSweepSize,
	}
}

func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= c.sweepSize {
		c.cleanup()
		c.sweepSize = max(minSweepSize, 2*len(c.items))
	}
	c.items[key] = item[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if ok && c.now().After(it.expiresAt) {
		delete(c.items, key)
		ok = false
	}
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return it.value, true
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// GetStats returns hit/miss counters and the current size.
func (c *Cache[V]) GetStats() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]int64{
		"hits":    c.hits,
		"misses":  c.misses,
		"entries": int64(len(c.items)),
	}
}

// GenerateKey hashes parts into a fixed-size key. Parts are separated so
// ("ab", "c") and ("a", "bc") differ.
func GenerateKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache[V]) cleanup() {
	now := c.now()
	for key, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, key)
		}
	}
}
