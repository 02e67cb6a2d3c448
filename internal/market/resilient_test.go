package market

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsphere/finsphere/internal/breaker"
)

type stubProvider struct {
	calls atomic.Int32
	snap  Snapshot
	err   error
	delay time.Duration
}

func (s *stubProvider) Snapshot(ctx context.Context) (Snapshot, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
	return s.snap, s.err
}

func liveSnapshot(t *testing.T) Snapshot {
	t.Helper()
	snap, err := NewSnapshot(Quote{
		Timestamp:    time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		NiftyChange:  -2,
		SensexChange: -1.8,
		VIXLevel:     22,
		GoldPrice:    66000,
		USDINR:       84,
		BondYield10Y: 7.3,
	})
	require.NoError(t, err)
	return snap
}

func TestResilientProvider_LiveFetch(t *testing.T) {
	upstream := &stubProvider{snap: liveSnapshot(t)}
	p := NewResilientProvider(upstream, nil, breaker.NewPassthroughManager(), time.Second)

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceLive, snap.Source)
	assert.Equal(t, Bear, snap.Condition())

	last, ok := p.LastKnownGood()
	require.True(t, ok)
	assert.Equal(t, snap.Timestamp, last.Timestamp)
}

func TestResilientProvider_DefaultWhenNeverFetched(t *testing.T) {
	upstream := &stubProvider{err: errors.New("feed down")}
	p := NewResilientProvider(upstream, nil, breaker.NewPassthroughManager(), time.Second)

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FallbackSource, snap.Source)
	assert.Equal(t, 18.0, snap.VIXLevel)
}

func TestResilientProvider_LastKnownGood(t *testing.T) {
	upstream := &stubProvider{snap: liveSnapshot(t)}
	p := NewResilientProvider(upstream, nil, breaker.NewPassthroughManager(), time.Second)

	_, err := p.Snapshot(context.Background())
	require.NoError(t, err)

	upstream.err = errors.New("feed down")
	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceLastKnownGood, snap.Source)
	assert.Equal(t, 22.0, snap.VIXLevel)
}

func TestResilientProvider_TimeoutFallsBack(t *testing.T) {
	upstream := &stubProvider{snap: liveSnapshot(t), delay: time.Second}
	p := NewResilientProvider(upstream, nil, breaker.NewPassthroughManager(), 20*time.Millisecond)

	start := time.Now()
	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, FallbackSource, snap.Source)
}

func TestResilientProvider_RejectsInvalidUpstream(t *testing.T) {
	upstream := &stubProvider{snap: Snapshot{VIXLevel: 18}}
	p := NewResilientProvider(upstream, nil, breaker.NewPassthroughManager(), time.Second)

	_, err := p.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrFetchFailed)

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FallbackSource, snap.Source)
}

func TestResilientProvider_ServesFromCache(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewSnapshotCache(client, time.Minute)
	upstream := &stubProvider{snap: liveSnapshot(t)}
	p := NewResilientProvider(upstream, cache, breaker.NewPassthroughManager(), time.Second)

	first, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceLive, first.Source)

	second, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.Equal(t, int32(1), upstream.calls.Load())
}

func TestResilientProvider_OpenBreakerSkipsUpstream(t *testing.T) {
	trip := breaker.Settings{MinRequests: 1, FailureRatio: 0.5, OpenTimeout: time.Minute, HalfOpenMaxReqs: 1, CountInterval: time.Minute}
	upstream := &stubProvider{err: errors.New("feed down")}
	p := NewResilientProvider(upstream, nil, breaker.NewManagerWithSettings(&trip, nil, nil), time.Second)

	_, _ = p.Snapshot(context.Background())
	_, _ = p.Snapshot(context.Background())
	_, _ = p.Snapshot(context.Background())

	assert.Equal(t, int32(1), upstream.calls.Load())
}

func TestSimulatedProvider(t *testing.T) {
	p := NewSimulatedProvider(42)

	for i := 0; i < 20; i++ {
		snap, err := p.Snapshot(context.Background())
		require.NoError(t, err)
		assert.NoError(t, snap.Validate())
		assert.Equal(t, SourceLive, snap.Source)
		assert.GreaterOrEqual(t, snap.VIXLevel, 12.0)
		assert.LessOrEqual(t, snap.VIXLevel, 35.0)
		assert.GreaterOrEqual(t, snap.USDINR, 82.5)
		assert.LessOrEqual(t, snap.USDINR, 84.5)
		assert.Len(t, snap.SectorPerformance, len(simulatedSectors))
		assert.Equal(t, Classify(snap.NiftyChange, snap.VIXLevel), snap.Condition())
	}
}

func TestSimulatedProvider_DeterministicSeed(t *testing.T) {
	a, err := NewSimulatedProvider(7).Snapshot(context.Background())
	require.NoError(t, err)
	b, err := NewSimulatedProvider(7).Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.NiftyChange, b.NiftyChange)
	assert.Equal(t, a.SectorPerformance, b.SectorPerformance)
}

func TestSimulatedProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSimulatedProvider(1).Snapshot(ctx)
	assert.ErrorIs(t, err, ErrFetchFailed)
}
