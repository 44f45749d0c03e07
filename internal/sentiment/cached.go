package sentiment

import (
	"context"
	"time"

	"github.com/deusflow/pacwatch/internal/cache"
)

// Cached remembers successful polarity results by text so that articles
// seen again in the next cycle do not cost another model call. Failures
// are never cached.
type Cached struct {
	next  Capability
	cache *cache.Cache[float64]
}

func NewCached(next Capability, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache.New[float64](ttl)}
}

func (c *Cached) Polarity(ctx context.Context, text string) (float64, error) {
	key := cache.GenerateKey(text)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.next.Polarity(ctx, text)
	if err != nil {
		return 0, err
	}
	c.cache.Set(key, v)
	return v, nil
}

func (c *Cached) ResetBudget() {
	if b, ok := c.next.(budgeted); ok {
		b.ResetBudget()
	}
}

// Stats reports the cache counters alongside those of the wrapped capability.
func (c *Cached) Stats() map[string]interface{} {
	stats := make(map[string]interface{})
	if s, ok := c.next.(statser); ok {
		for k, v := range s.Stats() {
			stats[k] = v
		}
	}
	for k, v := range c.cache.GetStats() {
		stats["cache_"+k] = v
	}
	return stats
}
