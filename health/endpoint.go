package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EndpointCheckerConfig configures the upstream endpoint checker.
type EndpointCheckerConfig struct {
	// Name is the checker name.
	// Default: "upstream"
	Name string

	// URL is probed with Method.
	URL string

	// Method is the probe method.
	// Default: HEAD
	Method string

	// Client sends the probe.
	// Default: a client with a 5s timeout
	Client *http.Client
}

// EndpointChecker probes an upstream URL. Any response below 500 means the
// server is up; 429 and 503 are reported degraded.
type EndpointChecker struct {
	config EndpointCheckerConfig
}

// NewEndpointChecker creates a checker for an upstream URL.
func NewEndpointChecker(config EndpointCheckerConfig) *EndpointChecker {
	if config.Name == "" {
		config.Name = "upstream"
	}
	if config.Method == "" {
		config.Method = http.MethodHead
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: 5 * time.Second}
	}
	return &EndpointChecker{config: config}
}

// Name returns the configured checker name.
func (c *EndpointChecker) Name() string { return c.config.Name }

// Check sends the probe request.
func (c *EndpointChecker) Check(ctx context.Context) Result {
	req, err := http.NewRequestWithContext(ctx, c.config.Method, c.config.URL, nil)
	if err != nil {
		return Unhealthy("invalid probe request", err)
	}
	resp, err := c.config.Client.Do(req)
	if err != nil {
		return Unhealthy("upstream unreachable", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()

	details := map[string]any{"status_code": resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return Degraded(fmt.Sprintf("upstream returned %d", resp.StatusCode)).WithDetails(details)
	case resp.StatusCode >= 500:
		res := Unhealthy(fmt.Sprintf("upstream returned %d", resp.StatusCode), ErrCheckFailed)
		return res.WithDetails(details)
	default:
		return Healthy("upstream reachable").WithDetails(details)
	}
}

var _ Checker = (*EndpointChecker)(nil)
