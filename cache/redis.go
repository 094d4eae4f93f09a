package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces keys written by RedisCache.
const DefaultRedisPrefix = "reqops:"

// RedisCache stores entries in Redis using native key expiry.
//
// Values are persisted as JSON Records so that other consumers of the same
// keyspace can read key, value and ttl without knowing this package.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisCache wraps an existing go-redis client. The caller keeps ownership
// of the client unless it calls Close on the returned cache.
func NewRedisCache(client redis.UniversalClient, prefix string) (*RedisCache, error) {
	if client == nil {
		return nil, ErrNilBackend
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix, now: time.Now}, nil
}

// Get retrieves a value. redis.Nil is a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get: %w", err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, false, err
	}
	if rec.Expired(c.now()) {
		_ = c.client.Del(ctx, c.prefix+key).Err()
		return nil, false, nil
	}
	return rec.Value, true, nil
}

// Set stores a value with SET ... EX ttl. TTL<=0 is a no-op.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := encodeRecord(newRecord(key, value, ttl, c.now()))
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Delete removes a value. Idempotent - no error on miss.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache: redis del: %w", err)
	}
	return nil
}

// Clear deletes every key under the cache prefix using SCAN.
func (c *RedisCache) Clear(ctx context.Context) error {
	return c.scanDelete(ctx, c.prefix+"*")
}

// ClearMatching deletes the keys under the cache prefix that match pattern,
// using SCAN MATCH.
func (c *RedisCache) ClearMatching(ctx context.Context, pattern string) error {
	if err := CheckPattern(pattern); err != nil {
		return err
	}
	return c.scanDelete(ctx, c.prefix+pattern)
}

func (c *RedisCache) scanDelete(ctx context.Context, match string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 256).Result()
		if err != nil {
			return fmt.Errorf("cache: redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache: redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: redis ping: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var (
	_ Backend        = (*RedisCache)(nil)
	_ Clearer        = (*RedisCache)(nil)
	_ PatternClearer = (*RedisCache)(nil)
	_ Pinger         = (*RedisCache)(nil)
)
