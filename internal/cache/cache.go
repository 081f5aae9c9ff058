package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/visage-id/visage/internal/config"
)

// KeyPrefix namespaces every cache key written by this service.
const KeyPrefix = "face_recog_"

// DefaultTTL is applied when a caller passes a non-positive TTL.
const DefaultTTL = 30 * time.Minute

const (
	dialAttempts    = 3
	dialBackoffStep = 200 * time.Millisecond
	maxDialBackoff  = time.Second
	dialTimeout     = 2 * time.Second
)

// ResultCache stores serialized recognition results keyed by image hash.
// Implementations swallow backend errors: a broken cache degrades to
// misses, it never fails a request.
type ResultCache interface {
	// Get returns the cached value and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key for ttl (DefaultTTL when ttl <= 0).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes a single key.
	Delete(ctx context.Context, key string)
	// InvalidatePattern removes all keys matching a glob pattern.
	InvalidatePattern(ctx context.Context, pattern string)
	// Flush removes every entry.
	Flush(ctx context.Context)
	// Mode identifies the active backend ("redis" or "memory").
	Mode() string
	// Ping reports backend reachability for health checks.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// Key derives the cache key for an image payload.
func Key(image []byte) string {
	sum := md5.Sum(image)
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// New selects the cache backend. With REDIS_URL set it dials redis with
// bounded retries and falls back to the in-memory cache when the server
// stays unreachable; the chosen backend is fixed for the process lifetime.
func New(cfg *config.Config, logger *slog.Logger) ResultCache {
	if cfg.RedisURL == "" {
		logger.Info("cache: redis not configured, using in-memory backend",
			"max_keys", cfg.CacheMaxSize)
		return NewMemory(cfg.CacheMaxSize, logger)
	}

	client, err := dialRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn("cache: redis unreachable, falling back to in-memory backend",
			"error", err)
		return NewMemory(cfg.CacheMaxSize, logger)
	}

	logger.Info("cache: using redis backend")
	return NewRedis(client, logger)
}

func dialRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return client, nil
		}
		if attempt < dialAttempts {
			time.Sleep(dialBackoff(attempt))
		}
	}

	_ = client.Close()
	return nil, lastErr
}

func dialBackoff(attempt int) time.Duration {
	backoff := time.Duration(attempt) * dialBackoffStep
	if backoff > maxDialBackoff {
		backoff = maxDialBackoff
	}
	return backoff
}
