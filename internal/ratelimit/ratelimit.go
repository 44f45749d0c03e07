package ratelimit

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// ErrBudgetExhausted is returned once a cycle has used all of its requests.
var ErrBudgetExhausted = errors.New("ratelimit: request budget exhausted")

// Limiter paces calls to a paid model API and caps how many one refresh
// cycle may make.
type Limiter struct {
	mu       sync.Mutex
	used     int
	rejected int
	total    int
	max      int // 0 = unlimited
	pace     *rate.Limiter
}

// New creates a limiter allowing maxPerCycle requests per cycle at rps
// requests per second. rps <= 0 disables pacing.
func New(maxPerCycle int, rps float64) *Limiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Limiter{
		max:  maxPerCycle,
		pace: rate.NewLimiter(limit, 1),
	}
}

// Wait reserves one request from the cycle budget and blocks until the pace
// allows it or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	if l.max > 0 && l.used >= l.max {
		l.rejected++
		l.mu.Unlock()
		return ErrBudgetExhausted
	}
	l.used++
	l.total++
	l.mu.Unlock()

	return l.pace.Wait(ctx)
}

// Reset starts a new cycle budget.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.used = 0
	l.rejected = 0
}

// GetStats returns current limiter statistics
func (l *Limiter) GetStats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]interface{}{
		"cycle_used":     l.used,
		"cycle_limit":    l.max,
		"cycle_rejected": l.rejected,
		"total_used":     l.total,
	}
}
