package cache

import (
	"context"
	"sync/atomic"

	"github.com/rzzdr/actuarial-risk-core/pkg/models"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/circuit"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

// Guarded puts a circuit breaker in front of a remote cache. Failures degrade
// to misses. An invalidation that cannot reach the backend stays pending and
// every lookup misses until it has been delivered, so a stale model is never
// served after the dataset changes.
type Guarded struct {
	inner   ModelCache
	breaker *circuit.Breaker
	pending atomic.Bool
	log     *logger.Logger
}

// NewGuarded wraps inner with breaker
func NewGuarded(inner ModelCache, breaker *circuit.Breaker) *Guarded {
	return &Guarded{
		inner:   inner,
		breaker: breaker,
		log:     logger.GetLogger("cache.guarded"),
	}
}

// Get implements ModelCache
func (g *Guarded) Get(ctx context.Context, key string) (*models.QuartileModel, bool, error) {
	if !g.flush(ctx) {
		return nil, false, nil
	}

	var (
		model *models.QuartileModel
		ok    bool
	)
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		model, ok, err = g.inner.Get(ctx, key)
		return err
	})
	if err != nil {
		g.log.Debugf("Cache lookup degraded to miss: %v", err)
		return nil, false, nil
	}
	return model, ok, nil
}

// Set implements ModelCache. Writes are dropped while an invalidation is pending.
func (g *Guarded) Set(ctx context.Context, key string, model *models.QuartileModel) error {
	if g.pending.Load() {
		return nil
	}
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.inner.Set(ctx, key, model)
	})
	if err != nil {
		g.log.Debugf("Cache write skipped: %v", err)
	}
	return nil
}

// Invalidate implements ModelCache
func (g *Guarded) Invalidate(ctx context.Context) error {
	g.pending.Store(true)
	if !g.flush(ctx) {
		g.log.Warn("Cache invalidation deferred until the backend recovers")
	}
	return nil
}

// Pending reports whether an invalidation is waiting for the backend
func (g *Guarded) Pending() bool {
	return g.pending.Load()
}

// flush delivers a pending invalidation and reports whether the cache is usable
func (g *Guarded) flush(ctx context.Context) bool {
	if !g.pending.Load() {
		return true
	}
	if err := g.breaker.Do(ctx, g.inner.Invalidate); err != nil {
		return false
	}
	g.pending.Store(false)
	return true
}
