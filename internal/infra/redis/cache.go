package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trivia-session-service/internal/metrics"
)

const defaultOpTimeout = 250 * time.Millisecond

// Cache is a best-effort key/value store on Redis. Every failure is logged and
// reported as a miss; nothing is returned to the caller as an error.
type Cache struct {
	client    *redis.Client
	opTimeout time.Duration
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewCache(client *redis.Client, m *metrics.Metrics, logger zerolog.Logger) *Cache {
	return &Cache{
		client:    client,
		opTimeout: defaultOpTimeout,
		metrics:   m,
		logger:    logger.With().Str("component", "redis_cache").Logger(),
	}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		c.metrics.CacheOp("get", false)
		return nil, false
	}
	c.metrics.CacheOp("get", true)
	return raw, true
}

// Set stores value under key; ttl <= 0 keeps it without expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
		c.metrics.CacheOp("set", false)
		return false
	}
	c.metrics.CacheOp("set", true)
	return true
}

func (c *Cache) Delete(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache delete failed")
		c.metrics.CacheOp("delete", false)
		return false
	}
	c.metrics.CacheOp("delete", true)
	return true
}
