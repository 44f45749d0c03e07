package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCache(ttl time.Duration) (*Cache[float64], *time.Time) {
	clock := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	c := New[float64](ttl)
	c.now = func() time.Time { return clock }
	return c, &clock
}

func TestCache_SetGetExpire(t *testing.T) {
	c, clock := newTestCache(time.Hour)

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", -0.5)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, -0.5, v)

	*clock = clock.Add(time.Hour + time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is dropped on read")

	assert.Equal(t, map[string]int64{"hits": 1, "misses": 2, "entries": 0}, c.GetStats())
}

func TestCache_SweepsExpiredOnGrowth(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	for i := 0; i < minSweepSize; i++ {
		c.Set(fmt.Sprint(i), float64(i))
	}
	*clock = clock.Add(2 * time.Minute)

	c.Set("fresh", 1)
	assert.Equal(t, 1, c.Len())
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, GenerateKey("China", "text"), GenerateKey("China", "text"))
	assert.NotEqual(t, GenerateKey("ab", "c"), GenerateKey("a", "bc"))
	assert.Len(t, GenerateKey("x"), 64)
}
