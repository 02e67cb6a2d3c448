package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/breaker"
	"github.com/finsphere/finsphere/internal/metrics"
)

const defaultFetchTimeout = 3 * time.Second

// ResilientProvider fronts an upstream feed with a Redis cache and a
// circuit breaker. A failed fetch never blocks the decision pipeline: it
// returns the last-known-good snapshot, or the default snapshot when there
// has never been a good one.
type ResilientProvider struct {
	upstream Provider
	cache    *SnapshotCache
	breakers *breaker.Manager
	timeout  time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	lastGood *Snapshot
}

// NewResilientProvider wires the upstream feed. cache may be nil.
func NewResilientProvider(upstream Provider, cache *SnapshotCache, breakers *breaker.Manager, timeout time.Duration) *ResilientProvider {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if breakers == nil {
		breakers = breaker.NewManager()
	}
	return &ResilientProvider{
		upstream: upstream,
		cache:    cache,
		breakers: breakers,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Snapshot returns the freshest snapshot available. The error is always nil;
// degraded results are flagged through Snapshot.Source.
func (p *ResilientProvider) Snapshot(ctx context.Context) (Snapshot, error) {
	if snap, ok := p.cache.Get(ctx); ok {
		metrics.RecordRedisOperation("get", metrics.CacheHit)
		metrics.RecordMarketSnapshot(SourceCache)
		return snap, nil
	}
	if p.cache != nil {
		metrics.RecordRedisOperation("get", metrics.CacheMiss)
	}

	snap, err := p.Refresh(ctx)
	if err == nil {
		metrics.RecordMarketSnapshot(SourceLive)
		return snap, nil
	}

	log.Warn().
		Err(err).
		Msg("Market feed unavailable, serving fallback snapshot")

	if last, ok := p.LastKnownGood(); ok {
		metrics.RecordMarketSnapshot(SourceLastKnownGood)
		return last.WithSource(SourceLastKnownGood), nil
	}

	metrics.RecordMarketSnapshot(FallbackSource)
	return Default(p.now().UTC()), nil
}

// Refresh fetches from upstream through the breaker and updates the cache
// and last-known-good snapshot
func (p *ResilientProvider) Refresh(ctx context.Context) (Snapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	snap, err := breaker.Execute(p.breakers, p.breakers.Market(), breaker.ServiceMarket, func() (Snapshot, error) {
		s, err := p.upstream.Snapshot(fetchCtx)
		if err != nil {
			return Snapshot{}, err
		}
		if err := s.Validate(); err != nil {
			return Snapshot{}, err
		}
		return s, nil
	})
	if err != nil {
		metrics.RecordMarketFetchError(err)
		return Snapshot{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	snap = snap.WithSource(SourceLive)

	p.mu.Lock()
	stored := snap
	p.lastGood = &stored
	p.mu.Unlock()

	if p.cache != nil {
		if err := p.cache.Set(ctx, snap); err != nil {
			metrics.RecordRedisOperation("set", metrics.ErrorOther)
		} else {
			metrics.RecordRedisOperation("set", metrics.ResultOK)
		}
	}

	return snap, nil
}

// LastKnownGood returns the most recent successful upstream snapshot
func (p *ResilientProvider) LastKnownGood() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastGood == nil {
		return Snapshot{}, false
	}
	return *p.lastGood, true
}
