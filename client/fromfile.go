package client

import (
	"context"
	"fmt"

	"github.com/jonwraymond/reqops/auth"
	"github.com/jonwraymond/reqops/cache"
	"github.com/jonwraymond/reqops/config"
	"github.com/jonwraymond/reqops/resilience"
	"github.com/jonwraymond/reqops/secret"
)

// FromFile builds a client whose instance layer comes from f. Environment
// references and secret references in the base URL, headers, cache
// credentials and auth settings are resolved first. opts are applied after
// the options derived from f.
func FromFile(ctx context.Context, f *config.File, opts ...Option) (*Client, error) {
	resolver, err := secret.DefaultRegistry.Resolver(f.Secrets.Strict, f.Secrets.Providers)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resolver.Close() }()

	baseURL, err := resolver.ResolveValue(ctx, f.Client.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("resolve client.base_url: %w", err)
	}
	headers, err := resolver.ResolveMap(ctx, f.Client.Headers)
	if err != nil {
		return nil, fmt.Errorf("resolve client.headers: %w", err)
	}

	var authn auth.Authenticator
	if f.Auth.Type != "" {
		resolved, err := resolver.ResolveAny(ctx, f.Auth.Config)
		if err != nil {
			return nil, fmt.Errorf("resolve auth.config: %w", err)
		}
		cfg, _ := resolved.(map[string]any)
		authn, err = auth.DefaultRegistry.CreateAuthenticator(f.Auth.Type, cfg)
		if err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
	}

	parser, err := ParserByName(f.Client.Parser, f.Client.DownloadDir)
	if err != nil {
		return nil, err
	}

	cacheCfg := f.Cache
	if cacheCfg.Redis.Password, err = resolver.ResolveValue(ctx, cacheCfg.Redis.Password); err != nil {
		return nil, fmt.Errorf("resolve cache.redis.password: %w", err)
	}
	backend, closer, err := cache.NewFromConfig(ctx, cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	instance := Settings{
		BaseURL:         baseURL,
		Method:          f.Client.Method,
		Headers:         headers,
		Timeout:         f.Client.Timeout,
		MaxRetries:      f.Client.MaxRetries,
		MaxWorkers:      f.Client.MaxWorkers,
		BackoffBase:     f.Client.BackoffBase,
		BackoffMax:      f.Client.BackoffMax,
		Authenticator:   authn,
		Cache:           backend,
		CacheTTL:        f.Client.CacheTTL,
		CacheKeyHeaders: f.Client.CacheKeyHeaders,
		Parser:          parser,
	}

	fileOpts := []Option{WithInstance(instance), WithCloser(closer)}
	if f.Client.UserAgent != "" {
		fileOpts = append(fileOpts, WithTransportOptions(WithUserAgent(f.Client.UserAgent)))
	}
	if f.Client.User != "" {
		fileOpts = append(fileOpts, WithUserIdentifier(f.Client.User))
	}
	if f.Client.Deduplicate {
		fileOpts = append(fileOpts, WithDeduplication())
	}
	r := f.Resilience
	if r.RateLimit > 0 {
		fileOpts = append(fileOpts, WithRateLimit(resilience.RateLimiterConfig{
			Rate:        r.RateLimit,
			Burst:       r.Burst,
			WaitOnLimit: true,
			MaxWait:     r.RateLimitWait,
		}))
	}
	if r.MaxInFlight > 0 {
		fileOpts = append(fileOpts, WithBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: r.MaxInFlight,
			MaxWait:       r.InFlightWait,
		}))
	}
	if r.BreakerFailures > 0 {
		fileOpts = append(fileOpts, WithCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         baseURL,
			MaxFailures:  r.BreakerFailures,
			ResetTimeout: r.BreakerReset,
		}))
	}

	c, err := New(Settings{}, append(fileOpts, opts...)...)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	return c, nil
}
