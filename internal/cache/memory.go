package cache

import (
	"context"
	"log/slog"
	"path"
	"sync"
	"time"
)

const (
	defaultMaxKeys = 1000
	sweepInterval  = time.Minute
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is the in-process fallback backend used when redis is not
// configured or unreachable. Expired entries are collected by a background
// sweep; reads treat them as misses in the meantime.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	maxKeys int
	logger  *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemory creates an in-memory cache holding at most maxKeys entries and
// starts its sweep loop.
func NewMemory(maxKeys int, logger *slog.Logger) *Memory {
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	c := &Memory{
		entries: make(map[string]memEntry),
		maxKeys: maxKeys,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Get retrieves a value by key.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value with TTL, evicting the entry closest to expiry when
// the cache is full.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxKeys {
		c.evictLocked(now)
	}
	c.entries[key] = memEntry{value: value, expiresAt: now.Add(ttl)}
}

// Delete removes a key.
func (c *Memory) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidatePattern removes all keys matching a glob pattern.
func (c *Memory) InvalidatePattern(_ context.Context, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		matched, err := path.Match(pattern, key)
		if err != nil {
			c.logger.Warn("cache: bad invalidation pattern", "pattern", pattern, "error", err)
			return
		}
		if matched {
			delete(c.entries, key)
		}
	}
}

// Flush removes every entry.
func (c *Memory) Flush(_ context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]memEntry)
	c.mu.Unlock()
}

// Mode identifies the backend.
func (c *Memory) Mode() string {
	return "memory"
}

// Ping always succeeds for the in-process backend.
func (c *Memory) Ping(_ context.Context) error {
	return nil
}

// Close stops the sweep loop.
func (c *Memory) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *Memory) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep drops expired entries.
func (c *Memory) sweep() {
	now := time.Now()
	c.mu.Lock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// evictLocked first drops expired entries, then the live entry closest to
// expiry if the cache is still at capacity. Caller holds mu.
func (c *Memory) evictLocked(now time.Time) {
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) < c.maxKeys {
		return
	}

	var oldestKey string
	var oldestExpiry time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

var _ ResultCache = (*Memory)(nil)
