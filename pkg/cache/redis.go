package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces every proxy-owned key so Clear never touches
// unrelated data sharing the same Redis instance.
const redisKeyPrefix = "cacheproxy:"

// redisScanCount is the SCAN batch size used by Clear.
const redisScanCount = 100

// RedisBackend adapts the backend contract onto Redis. Expiry is delegated
// to Redis TTLs and eviction to the server's own memory policy; there is no
// local LRU. A miss (redis.Nil) is never conflated with an unreachable
// backend, which surfaces as ErrBackendUnavailable.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a Redis backend over an existing client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisBackend{client: client}
}

// Get retrieves the entry for key.
func (b *RedisBackend) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := b.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: redis get: %v", ErrBackendUnavailable, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupted entry: drop it and treat as a miss so the next fetch
		// repopulates the key.
		CacheErrors.WithLabelValues("get").Inc()
		b.client.Del(ctx, redisKeyPrefix+key)
		return nil, ErrCacheMiss
	}

	// Redis TTL should have removed stale entries already; double-check
	// against the stamped expiry in case of clock drift.
	if entry.IsExpired() {
		b.client.Del(ctx, redisKeyPrefix+key)
		return nil, ErrCacheMiss
	}

	return &entry, nil
}

// Set stores the entry under key with a Redis-enforced TTL.
func (b *RedisBackend) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive (got %v)", ttl)
	}

	data, err := json.Marshal(entry.WithTTL(ttl))
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := b.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("%w: redis set: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Delete removes key and reports whether it was present.
func (b *RedisBackend) Delete(ctx context.Context, key string) (bool, error) {
	removed, err := b.client.Del(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("%w: redis del: %v", ErrBackendUnavailable, err)
	}
	return removed > 0, nil
}

// Clear removes all proxy-owned keys (those under the fixed prefix) and
// returns the number removed. Keys outside the prefix are never touched.
func (b *RedisBackend) Clear(ctx context.Context) (int, error) {
	removed := 0
	iter := b.client.Scan(ctx, 0, redisKeyPrefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		n, err := b.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			CacheErrors.WithLabelValues("clear").Inc()
			return removed, fmt.Errorf("%w: redis del: %v", ErrBackendUnavailable, err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return removed, fmt.Errorf("%w: redis scan: %v", ErrBackendUnavailable, err)
	}
	return removed, nil
}

// Info returns the entry for key. Redis keeps no recency order, so Info and
// Get are equivalent reads here.
func (b *RedisBackend) Info(ctx context.Context, key string) (*Entry, error) {
	return b.Get(ctx, key)
}

// Name implements Backend.
func (b *RedisBackend) Name() string { return "redis" }

// Close closes the underlying Redis client.
func (b *RedisBackend) Close() error { return b.client.Close() }
