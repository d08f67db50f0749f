package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Cache interface {
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, key string) (*Place, error)
	Set(ctx context.Context, key string, place *Place, ttl time.Duration) error
}

type memoryEntry struct {
	place     Place
	expiresAt time.Time
}

// MemoryCache is a TTL map used when no Redis is configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*Place, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, nil
	}
	p := e.place
	return &p, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, place *Place, ttl time.Duration) error {
	if place == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{place: *place, expiresAt: c.now().Add(ttl)}
	return nil
}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func redisKey(key string) string { return "huddle:geocode:" + key }

func (c *RedisCache) Get(ctx context.Context, key string) (*Place, error) {
	raw, err := c.rdb.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p Place
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, place *Place, ttl time.Duration) error {
	if place == nil {
		return nil
	}
	raw, err := json.Marshal(place)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, redisKey(key), raw, ttl).Err()
}

// CachedLookup fronts a Lookuper with a Cache. Misses and errors are not cached.
type CachedLookup struct {
	next  Lookuper
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedLookup(next Lookuper, cache Cache, ttl time.Duration, log *zap.Logger) *CachedLookup {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedLookup{next: next, cache: cache, ttl: ttl, log: log}
}

func (c *CachedLookup) Lookup(ctx context.Context, query string) (*Place, error) {
	key := NormalizeQuery(query)
	if key == "" {
		return nil, ErrNoMatch
	}

	if c.cache != nil {
		if p, err := c.cache.Get(ctx, key); err != nil {
			c.log.Warn("[Geocode] cache read failed", zap.Error(err))
		} else if p != nil {
			return p, nil
		}
	}

	p, err := c.next.Lookup(ctx, query)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, p, c.ttl); err != nil {
			c.log.Warn("[Geocode] cache write failed", zap.Error(err))
		}
	}
	return p, nil
}
