package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the remote KV backend. On any operational error it
// degrades silently: callers always get a cache miss rather than an
// error, since retrieval correctness must never depend on the cache
// being available.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis constructs a RedisCache and verifies connectivity with a
// bounded ping. Returns an error only at construction time; runtime
// failures are swallowed and logged.
func NewRedis(ctx context.Context, host string, port, db int, password string, logger *slog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		DB:       db,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, logger: logger}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis cache get failed, treating as miss", "error", err)
		}
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("redis cache set failed", "error", err)
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("redis cache delete failed", "error", err)
	}
}

func (c *RedisCache) Clear(ctx context.Context) {
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		c.logger.Warn("redis cache clear failed", "error", err)
	}
}

// NewWithFallback selects a backend at init: Redis if enabled and
// reachable, otherwise the in-process LRU. If Redis becomes unreachable
// later, individual operations still degrade to cache-miss inside
// RedisCache itself; NewWithFallback only governs the initial choice.
func NewWithFallback(ctx context.Context, redisEnabled bool, redisHost string, redisPort, redisDB int, redisPassword string, lruSize int, logger *slog.Logger) (Cache, error) {
	lruCache, err := NewLRU(lruSize)
	if err != nil {
		return nil, fmt.Errorf("construct lru cache: %w", err)
	}
	if !redisEnabled {
		return lruCache, nil
	}

	redisCache, err := NewRedis(ctx, redisHost, redisPort, redisDB, redisPassword, logger)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("redis cache unavailable at startup, falling back to in-memory", "error", err)
		return lruCache, nil
	}

	return redisCache, nil
}
