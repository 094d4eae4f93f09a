package cache

import (
	"net/http"
	"strings"
	"time"
)

// Policy configures caching behavior.
type Policy struct {
	// DefaultTTL is the TTL to use when none is specified.
	// If zero, caching is disabled by default.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// CacheableMethods lists the HTTP methods whose responses may be cached.
	// Empty means GET and HEAD.
	CacheableMethods []string

	// AllowUnsafe permits caching responses of unsafe methods (POST, PUT, ...).
	AllowUnsafe bool
}

// DefaultPolicy returns the default caching policy.
// DefaultTTL: 5 minutes, MaxTTL: 1 hour, GET and HEAD only.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL:       5 * time.Minute,
		MaxTTL:           1 * time.Hour,
		CacheableMethods: []string{http.MethodGet, http.MethodHead},
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// Cacheable reports whether responses for method may be cached.
func (p Policy) Cacheable(method string) bool {
	method = strings.ToUpper(method)
	methods := p.CacheableMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodHead}
	}
	for _, m := range methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
