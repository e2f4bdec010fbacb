// Package store caches the live signal set in Redis so dashboards and other
// readers get the current view without touching the engine or the database.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/atirdror123/sniperbot/internal/scan"
)

const liveSignalsKey = "sniper:signals:live"

// LiveCache publishes the ordered active-signal set under a TTL matched to
// the signal expiry window, so a stalled engine ages out of the cache
// instead of serving stale signals forever.
type LiveCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewLiveCache wraps a redis client. The connection is verified with a ping.
func NewLiveCache(ctx context.Context, addr string, db int, ttl time.Duration, logger zerolog.Logger) (*LiveCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &LiveCache{
		client: client,
		ttl:    ttl,
		log:    logger.With().Str("component", "live_cache").Logger(),
	}, nil
}

// Publish replaces the cached live set with the given ordered signals.
func (c *LiveCache) Publish(ctx context.Context, signals []scan.Signal) error {
	payload, err := json.Marshal(signals)
	if err != nil {
		return fmt.Errorf("failed to marshal live signals: %w", err)
	}
	if err := c.client.Set(ctx, liveSignalsKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to publish live signals: %w", err)
	}
	c.log.Debug().Int("count", len(signals)).Msg("live signal set published")
	return nil
}

// Live reads the cached set. A missing key returns an empty slice, not an
// error: an empty live set and an expired one look the same to readers.
func (c *LiveCache) Live(ctx context.Context) ([]scan.Signal, error) {
	payload, err := c.client.Get(ctx, liveSignalsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read live signals: %w", err)
	}
	var signals []scan.Signal
	if err := json.Unmarshal(payload, &signals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal live signals: %w", err)
	}
	return signals, nil
}

// Close releases the underlying client.
func (c *LiveCache) Close() error {
	return c.client.Close()
}
