package market

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewSnapshotCache(t *testing.T) {
	assert.Nil(t, NewSnapshotCache(nil, time.Minute))

	cache := NewSnapshotCache(&redis.Client{}, 0)
	require.NotNil(t, cache)
	assert.Equal(t, defaultSnapshotTTL, cache.ttl)
}

func TestSnapshotCache_GetSet(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewSnapshotCache(client, time.Minute)
	ctx := context.Background()

	_, found := cache.Get(ctx)
	assert.False(t, found)

	snap := Default(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, cache.Set(ctx, snap))

	got, found := cache.Get(ctx)
	require.True(t, found)
	assert.Equal(t, snap.Timestamp, got.Timestamp)
	assert.Equal(t, snap.VIXLevel, got.VIXLevel)
	assert.Equal(t, snap.SectorPerformance, got.SectorPerformance)
	assert.Equal(t, Sideways, got.Condition())
	assert.Equal(t, SourceCache, got.Source)
}

func TestSnapshotCache_Expiry(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewSnapshotCache(client, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, Default(time.Now())))
	mr.FastForward(31 * time.Second)

	_, found := cache.Get(ctx)
	assert.False(t, found)
}

func TestSnapshotCache_CorruptEntryIsMiss(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewSnapshotCache(client, time.Minute)

	require.NoError(t, mr.Set(latestSnapshotKey, "{not json"))

	_, found := cache.Get(context.Background())
	assert.False(t, found)
}

func TestSnapshotCache_Delete(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewSnapshotCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, Default(time.Now())))
	require.NoError(t, cache.Delete(ctx))

	_, found := cache.Get(ctx)
	assert.False(t, found)
}

func TestSnapshotCache_Health(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewSnapshotCache(client, time.Minute)

	assert.NoError(t, cache.Health(context.Background()))

	mr.Close()
	assert.Error(t, cache.Health(context.Background()))
}

func TestSnapshotCache_NilSafe(t *testing.T) {
	var cache *SnapshotCache
	ctx := context.Background()

	_, found := cache.Get(ctx)
	assert.False(t, found)
	assert.Error(t, cache.Set(ctx, Default(time.Now())))
	assert.Error(t, cache.Delete(ctx))
	assert.Error(t, cache.Health(ctx))
}
