package reflection

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCacheTTL is the validity window for cached reflections.
const DefaultCacheTTL = 24 * time.Hour

// CacheKey builds the cache key for a mood and timeframe. The key ignores the
// underlying entry set on purpose: the same mood/timeframe serves the same
// cached artifact until the TTL expires, even if new entries arrive.
func CacheKey(mood Mood, timeframe Timeframe) string {
	return string(mood) + "_" + string(timeframe)
}

// CacheEntry is one cached reflection in the persistent tier.
type CacheEntry struct {
	Key        string         `json:"key"`
	Reflection MoodReflection `json:"reflection"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

// Valid reports whether the entry is still fresh at now.
func (e CacheEntry) Valid(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// CacheStore is the durable tier behind the cache. Implementations must make
// their own read-modify-write atomic; the Cache serializes its calls with a
// single mutex on top.
type CacheStore interface {
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	Put(ctx context.Context, entry CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Cache is the two-tier expiring reflection cache: an in-process map plus an
// optional persistent store. All operations hold one mutex so two concurrent
// requests for the same key cannot both trigger a fresh generation.
type Cache struct {
	mu     sync.Mutex
	mem    map[string]CacheEntry
	store  CacheStore
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewCache builds the cache and runs the startup cleanup pass over the
// persistent tier. A nil store leaves only the in-process tier.
func NewCache(store CacheStore, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		mem:    make(map[string]CacheEntry),
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
	if store != nil {
		if n, err := store.PurgeExpired(context.Background(), c.now()); err != nil {
			logger.Warn("cache startup purge failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("purged expired cache entries", zap.Int("count", n))
		}
	}
	return c
}

// Get returns the valid cached reflection for key, preferring the persistent
// tier when it is present and fresh. Expired entries found along the way are
// purged lazily. Store read failures degrade to a miss.
func (c *Cache) Get(ctx context.Context, key string) (MoodReflection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if c.store != nil {
		entry, ok, err := c.store.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("persistent cache read failed", zap.String("key", key), zap.Error(err))
		case ok && entry.Valid(now):
			c.mem[key] = entry
			return entry.Reflection, true
		case ok:
			if err := c.store.Delete(ctx, key); err != nil {
				c.logger.Warn("failed to purge expired cache entry", zap.String("key", key), zap.Error(err))
			}
			delete(c.mem, key)
		}
	}

	if entry, ok := c.mem[key]; ok {
		if entry.Valid(now) {
			return entry.Reflection, true
		}
		delete(c.mem, key)
	}
	return MoodReflection{}, false
}

// Put writes the reflection to both tiers with expiry = now + TTL.
func (c *Cache) Put(ctx context.Context, key string, r MoodReflection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry := CacheEntry{
		Key:        key,
		Reflection: r,
		CreatedAt:  now,
		ExpiresAt:  now.Add(c.ttl),
	}
	c.mem[key] = entry
	if c.store != nil {
		return c.store.Put(ctx, entry)
	}
	return nil
}

// Invalidate removes key from both tiers.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.mem, key)
	if c.store != nil {
		return c.store.Delete(ctx, key)
	}
	return nil
}

// Clear wipes both tiers entirely.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem = make(map[string]CacheEntry)
	if c.store != nil {
		return c.store.Clear(ctx)
	}
	return nil
}
