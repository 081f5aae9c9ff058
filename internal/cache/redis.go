package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanCount = 100

// Redis is the primary cache backend shared across workers.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis wraps an already-connected client.
func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

// Get retrieves a value by key. Backend errors are logged and reported as
// misses.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache: redis get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return value, true
}

// Set stores a value with TTL.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("cache: redis set failed", "key", key, "error", err)
	}
}

// Delete removes a key.
func (c *Redis) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache: redis delete failed", "key", key, "error", err)
	}
}

// InvalidatePattern removes all keys matching a glob pattern via SCAN so
// the server is never blocked by a KEYS call.
func (c *Redis) InvalidatePattern(ctx context.Context, pattern string) {
	var cursor uint64
	var deleted int
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			c.logger.Warn("cache: redis scan failed", "pattern", pattern, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn("cache: redis delete failed", "pattern", pattern, "error", err)
				return
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		c.logger.Debug("cache: invalidated keys", "pattern", pattern, "count", deleted)
	}
}

// Flush removes every entry in the current database.
func (c *Redis) Flush(ctx context.Context) {
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		c.logger.Warn("cache: redis flush failed", "error", err)
	}
}

// Mode identifies the backend.
func (c *Redis) Mode() string {
	return "redis"
}

// Ping reports server reachability.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client connection pool.
func (c *Redis) Close() error {
	return c.client.Close()
}

var _ ResultCache = (*Redis)(nil)
