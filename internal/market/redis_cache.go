package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	latestSnapshotKey  = "finsphere:market:snapshot:latest"
	defaultSnapshotTTL = 5 * time.Minute
	cacheOpTimeout     = 500 * time.Millisecond
)

// SnapshotCache stores the latest market snapshot in Redis so every API
// replica evaluates against the same reading
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache creates a Redis-backed snapshot cache.
// If client is nil, returns nil (Redis is optional).
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if client == nil {
		return nil
	}

	if ttl == 0 {
		ttl = defaultSnapshotTTL
	}

	return &SnapshotCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached snapshot and true on a hit
func (c *SnapshotCache) Get(ctx context.Context) (Snapshot, bool) {
	if c == nil || c.client == nil {
		return Snapshot{}, false
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	cached, err := c.client.Get(cacheCtx, latestSnapshotKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug().
				Err(err).
				Str("key", latestSnapshotKey).
				Msg("Redis get error - treating as cache miss")
		}
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(cached, &snap); err != nil {
		log.Warn().
			Err(err).
			Str("key", latestSnapshotKey).
			Msg("Failed to unmarshal cached snapshot")
		return Snapshot{}, false
	}

	log.Debug().
		Time("snapshot_at", snap.Timestamp).
		Str("condition", string(snap.Condition())).
		Msg("Cache hit for market snapshot")

	return snap, true
}

// Set stores the snapshot with the configured TTL
func (c *SnapshotCache) Set(ctx context.Context, snap Snapshot) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	data, err := json.Marshal(snap.WithSource(SourceCache))
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	if err := c.client.Set(cacheCtx, latestSnapshotKey, data, c.ttl).Err(); err != nil {
		log.Warn().
			Err(err).
			Str("key", latestSnapshotKey).
			Msg("Failed to cache snapshot")
		return err
	}

	log.Debug().
		Time("snapshot_at", snap.Timestamp).
		Dur("ttl", c.ttl).
		Msg("Cached market snapshot")

	return nil
}

// Delete removes the cached snapshot
func (c *SnapshotCache) Delete(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	if err := c.client.Del(cacheCtx, latestSnapshotKey).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key: %w", err)
	}
	return nil
}

// Health checks if the Redis connection is healthy
func (c *SnapshotCache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(cacheCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return nil
}
