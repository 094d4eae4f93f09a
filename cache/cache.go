package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilBackend   = errors.New("cache: backend is nil")
	ErrInvalidKey   = errors.New("cache: key is invalid")
	ErrKeyTooLong   = errors.New("cache: key exceeds max length")
	ErrCorruptEntry = errors.New("cache: stored entry is corrupt")
	ErrNoClear      = errors.New("cache: backend does not support clear")
	ErrBadPattern   = errors.New("cache: malformed key pattern")
)

// Backend is the key/value store behind response caching.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Expiry: Get never returns an entry past its TTL; an expired entry is a miss.
// - Errors: a miss is (nil, false, nil). A non-nil error means the backend
// could not answer and the caller should treat the lookup as a miss.
type Backend interface {
	// Get retrieves a cached value.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. TTL<=0 means no caching.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a cached value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error
}

// Clearer is implemented by backends that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

// PatternClearer is implemented by backends that can drop only the entries
// whose keys match a glob pattern such as "cache:GET:*". Patterns use the
// path.Match syntax.
type PatternClearer interface {
	ClearMatching(ctx context.Context, pattern string) error
}

// CheckPattern reports ErrBadPattern for a pattern path.Match cannot parse.
func CheckPattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty", ErrBadPattern)
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("%w: %q", ErrBadPattern, pattern)
	}
	return nil
}

// Pinger is implemented by backends with a remote dependency that can be
// probed for liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// Record is the persisted shape of an entry in a remote backend.
type Record struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	TTL       int64     `json:"ttl"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newRecord(key string, value []byte, ttl time.Duration, now time.Time) Record {
	return Record{
		Key:       key,
		Value:     value,
		TTL:       int64(ttl / time.Second),
		ExpiresAt: now.Add(ttl).UTC(),
	}
}

// Expired reports whether the record is past its expiry at now.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

func encodeRecord(r Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("cache: encode record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return r, nil
}
