package cache

import (
	"context"
	"strings"
	"time"
)

// Mode selects how a single call interacts with the cache.
type Mode int

const (
	// ModeDefault looks up before executing and stores on success.
	ModeDefault Mode = iota
	// ModeRefresh skips the lookup but stores the fresh result.
	ModeRefresh
	// ModeBypass neither looks up nor stores.
	ModeBypass
)

func (m Mode) String() string {
	switch m {
	case ModeRefresh:
		return "refresh"
	case ModeBypass:
		return "bypass"
	default:
		return "default"
	}
}

// SkipRule determines whether to skip caching for a given request method.
// Returns true if caching should be skipped.
type SkipRule func(method string) bool

// UnsafeMethods are methods with side effects whose responses are never cached
// unless Policy.AllowUnsafe is set.
var UnsafeMethods = []string{"POST", "PUT", "PATCH", "DELETE"}

// DefaultSkipRule skips caching for unsafe methods. Matching is case-insensitive.
func DefaultSkipRule(method string) bool {
	for _, unsafe := range UnsafeMethods {
		if strings.EqualFold(method, unsafe) {
			return true
		}
	}
	return false
}

// Middleware decides whether a request is cacheable and performs the lookup
// and store halves of a cached call around the caller's own execution.
type Middleware struct {
	backend  Backend
	keyer    Keyer
	policy   Policy
	skipRule SkipRule
}

// NewMiddleware creates a new cache middleware.
// If keyer is nil, a DefaultKeyer is used. If skipRule is nil, DefaultSkipRule is used.
func NewMiddleware(backend Backend, keyer Keyer, policy Policy, skipRule SkipRule) *Middleware {
	if keyer == nil {
		keyer = NewDefaultKeyer()
	}
	if skipRule == nil {
		skipRule = DefaultSkipRule
	}
	return &Middleware{
		backend:  backend,
		keyer:    keyer,
		policy:   policy,
		skipRule: skipRule,
	}
}

// Backend returns the underlying backend.
func (m *Middleware) Backend() Backend { return m.backend }

// Policy returns the middleware policy.
func (m *Middleware) Policy() Policy { return m.policy }

// Key returns the cache key for the request and whether the request may be
// cached at all. A key error is reported as not cacheable.
func (m *Middleware) Key(method string, req Request) (string, bool) {
	if m == nil || m.backend == nil || !m.policy.ShouldCache() {
		return "", false
	}
	if !m.policy.AllowUnsafe && m.skipRule(method) {
		return "", false
	}
	if !m.policy.AllowUnsafe && !m.policy.Cacheable(method) {
		return "", false
	}
	key, err := m.keyer.Key(method, req)
	if err != nil || ValidateKey(key) != nil {
		return "", false
	}
	return key, true
}

// Lookup reads key unless mode forces a miss.
func (m *Middleware) Lookup(ctx context.Context, key string, mode Mode) ([]byte, bool, error) {
	if mode != ModeDefault {
		return nil, false, nil
	}
	return m.backend.Get(ctx, key)
}

// Store writes value under key with the policy TTL, or override when positive.
// ModeRefresh always overwrites; ModeBypass never writes.
func (m *Middleware) Store(ctx context.Context, key string, value []byte, override time.Duration, mode Mode) error {
	if mode == ModeBypass {
		return nil
	}
	ttl := m.policy.EffectiveTTL(override)
	if ttl <= 0 {
		return nil
	}
	return m.backend.Set(ctx, key, value, ttl)
}

// Invalidate removes the entry for key.
func (m *Middleware) Invalidate(ctx context.Context, key string) error {
	return m.backend.Delete(ctx, key)
}

// Clear drops every entry if the backend supports it.
func (m *Middleware) Clear(ctx context.Context) error {
	if c, ok := m.backend.(Clearer); ok {
		return c.Clear(ctx)
	}
	return ErrNoClear
}

// ClearMatching drops the entries whose keys match pattern if the backend
// supports it.
func (m *Middleware) ClearMatching(ctx context.Context, pattern string) error {
	if c, ok := m.backend.(PatternClearer); ok {
		return c.ClearMatching(ctx, pattern)
	}
	return ErrNoClear
}
