package cache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultNATSBucket is the KV bucket used when none is configured.
const DefaultNATSBucket = "reqops_cache"

// NATSConfig configures a JetStream key/value backed cache.
type NATSConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	// MaxAge bounds how long the bucket keeps any value, regardless of the
	// per-entry TTL. Zero leaves the bucket unbounded.
	MaxAge time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

// NATSCache stores entries in a NATS JetStream key/value bucket.
//
// KV buckets have no per-key TTL, so every value is a JSON Record and expiry
// is enforced on read.
type NATSCache struct {
	kv   jetstream.KeyValue
	conn *nats.Conn
	now  func() time.Time
}

// NewNATSCache connects to cfg.URL and opens (or creates) the bucket.
func NewNATSCache(ctx context.Context, cfg NATSConfig) (*NATSCache, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultNATSBucket
	}
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("cache: nats connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("cache: jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  cfg.Bucket,
		TTL:     cfg.MaxAge,
		History: 1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("cache: open bucket %q: %w", cfg.Bucket, err)
	}
	c := NewNATSCacheFromKV(kv)
	c.conn = nc
	return c, nil
}

// NewNATSCacheFromKV wraps an already opened bucket.
func NewNATSCacheFromKV(kv jetstream.KeyValue) *NATSCache {
	return &NATSCache{kv: kv, now: time.Now}
}

// Get retrieves a value. Missing, deleted and expired keys are misses.
func (c *NATSCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.kv.Get(ctx, natsKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: nats get: %w", err)
	}
	rec, err := decodeRecord(entry.Value())
	if err != nil {
		return nil, false, err
	}
	if rec.Expired(c.now()) {
		_ = c.kv.Delete(ctx, natsKey(key))
		return nil, false, nil
	}
	return rec.Value, true, nil
}

// Set stores a value. TTL<=0 is a no-op.
func (c *NATSCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
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
	if _, err := c.kv.Put(ctx, natsKey(key), data); err != nil {
		return fmt.Errorf("cache: nats put: %w", err)
	}
	return nil
}

// Delete removes a value. Idempotent - no error on miss.
func (c *NATSCache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, natsKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("cache: nats delete: %w", err)
	}
	return nil
}

// Clear deletes every key in the bucket.
func (c *NATSCache) Clear(ctx context.Context) error {
	return c.deleteKeys(ctx, func(string) bool { return true })
}

// ClearMatching deletes the keys that match pattern. The pattern is mapped
// onto the KV key alphabet the same way keys are.
func (c *NATSCache) ClearMatching(ctx context.Context, pattern string) error {
	if err := CheckPattern(pattern); err != nil {
		return err
	}
	p := natsPattern(pattern)
	return c.deleteKeys(ctx, func(k string) bool {
		ok, _ := path.Match(p, k)
		return ok
	})
}

func (c *NATSCache) deleteKeys(ctx context.Context, match func(string) bool) error {
	lister, err := c.kv.ListKeys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: nats list keys: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	for k := range lister.Keys() {
		if !match(k) {
			continue
		}
		if err := c.kv.Delete(ctx, k); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("cache: nats delete: %w", err)
		}
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (c *NATSCache) Ping(ctx context.Context) error {
	if _, err := c.kv.Status(ctx); err != nil {
		return fmt.Errorf("cache: nats status: %w", err)
	}
	return nil
}

// Close drains the connection opened by NewNATSCache. Caches built from an
// existing bucket leave the connection to the caller.
func (c *NATSCache) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}

// natsKey maps a cache key onto the KV key alphabet [-/_=.a-zA-Z0-9].
func natsKey(key string) string {
	return strings.Map(natsRune, key)
}

// natsPattern maps a glob like natsKey while keeping its metacharacters.
func natsPattern(pattern string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '?', '[', ']', '^', '\\':
			return r
		}
		return natsRune(r)
	}, pattern)
}

func natsRune(r rune) rune {
	switch {
	case r == ':':
		return '.'
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return r
	case r == '-', r == '/', r == '_', r == '=', r == '.':
		return r
	default:
		return '_'
	}
}

var (
	_ Backend        = (*NATSCache)(nil)
	_ Clearer        = (*NATSCache)(nil)
	_ PatternClearer = (*NATSCache)(nil)
	_ Pinger         = (*NATSCache)(nil)
)
