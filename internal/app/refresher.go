package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/deusflow/pacwatch/internal/logger"
	"github.com/deusflow/pacwatch/internal/metrics"
)

// ErrSuperseded is returned by a cycle that finished after a newer one started.
var ErrSuperseded = errors.New("refresh superseded by a newer cycle")

// Runner runs one refresh cycle.
type Runner interface {
	Run(ctx context.Context) (*Snapshot, error)
}

// Refresher serializes refresh cycles. Starting a cycle cancels the one in
// flight, and only the newest cycle may publish its snapshot.
type Refresher struct {
	runner  Runner
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup

	current atomic.Pointer[Snapshot]
}

func NewRefresher(runner Runner, m *metrics.Metrics, log *zap.Logger) *Refresher {
	return &Refresher{runner: runner, metrics: m, logger: logger.OrNop(log)}
}

// Snapshot returns the latest published snapshot, or nil before the first
// successful cycle.
func (r *Refresher) Snapshot() *Snapshot {
	return r.current.Load()
}

// Refresh runs a cycle now, cancelling any cycle in flight.
func (r *Refresher) Refresh(parent context.Context) (*Snapshot, error) {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.gen++
	gen := r.gen
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	start := time.Now()
	snap, err := r.runner.Run(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	newest := r.gen == gen
	if newest {
		r.cancel = nil
	}

	switch {
	case err != nil && ctx.Err() != nil:
		r.metrics.RecordRefresh(time.Since(start), metrics.OutcomeCancelled)
		r.logger.Info("refresh cancelled", zap.Uint64("cycle", gen))
		if !newest {
			return nil, ErrSuperseded
		}
		return nil, err
	case err != nil:
		r.metrics.RecordRefresh(time.Since(start), metrics.OutcomeError)
		r.metrics.SetError(err.Error())
		r.logger.Error("refresh failed", zap.Uint64("cycle", gen), zap.Error(err))
		return nil, err
	case !newest:
		r.metrics.RecordRefresh(time.Since(start), metrics.OutcomeCancelled)
		r.logger.Info("refresh discarded", zap.Uint64("cycle", gen))
		return nil, ErrSuperseded
	}

	r.current.Store(snap)
	r.metrics.RecordRefresh(time.Since(start), metrics.OutcomeOK)
	return snap, nil
}

// Trigger starts a cycle in the background and returns immediately.
func (r *Refresher) Trigger(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := r.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) && !errors.Is(err, context.Canceled) {
			r.logger.Warn("background refresh failed", zap.Error(err))
		}
	}()
}

// Close cancels the cycle in flight and waits for background cycles.
func (r *Refresher) Close() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}
