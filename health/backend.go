package health

import (
	"context"
	"time"

	"github.com/jonwraymond/reqops/cache"
)

// BackendCheckerConfig configures the cache backend checker.
type BackendCheckerConfig struct {
	// Name is the checker name.
	// Default: "cache"
	Name string

	// SlowThreshold marks the backend degraded when a ping takes longer.
	// Default: 250ms
	SlowThreshold time.Duration
}

// BackendChecker pings a cache backend. Backends without Ping, such as the
// in-process LRU, are always healthy.
type BackendChecker struct {
	backend cache.Backend
	config  BackendCheckerConfig
}

// NewBackendChecker creates a checker for backend.
func NewBackendChecker(backend cache.Backend, config BackendCheckerConfig) *BackendChecker {
	if config.Name == "" {
		config.Name = "cache"
	}
	if config.SlowThreshold <= 0 {
		config.SlowThreshold = 250 * time.Millisecond
	}
	return &BackendChecker{backend: backend, config: config}
}

// Name returns the configured checker name.
func (c *BackendChecker) Name() string { return c.config.Name }

// Check pings the backend.
func (c *BackendChecker) Check(ctx context.Context) Result {
	if c.backend == nil {
		return Healthy("cache disabled")
	}
	pinger, ok := c.backend.(cache.Pinger)
	if !ok {
		return Healthy("in-process backend")
	}

	start := time.Now()
	if err := pinger.Ping(ctx); err != nil {
		return Unhealthy("cache backend unreachable", err)
	}
	latency := time.Since(start)
	details := map[string]any{"latency": latency.String()}
	if latency > c.config.SlowThreshold {
		return Degraded("cache backend slow").WithDetails(details)
	}
	return Healthy("cache backend reachable").WithDetails(details)
}

var _ Checker = (*BackendChecker)(nil)
