package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/jonwraymond/reqops/cache"
	"github.com/jonwraymond/reqops/health"
	"github.com/jonwraymond/reqops/observe"
	"github.com/jonwraymond/reqops/resilience"
)

// Client issues declarative requests against one upstream.
//
// Contract:
//   - Concurrency: safe for concurrent use once constructed.
//   - Errors: Request returns an error only when the descriptor cannot be
//     built; every other failure is reported in the envelope.
//   - Ownership: the client never mutates descriptors or settings passed in.
type Client struct {
	class    Settings
	instance Settings

	transport Transport
	executor  *resilience.Executor
	batch     Executor
	obs       *observe.Middleware
	caching   *caching
	hooks     hooks
	jitter    float64
	closers   []io.Closer
}

type options struct {
	instance   Settings
	transport  Transport
	topts      []TransportOption
	logger     observe.Logger
	middleware *observe.Middleware
	observer   observe.Observer
	limiter    *resilience.RateLimiterConfig
	bulkhead   *resilience.BulkheadConfig
	breaker    *resilience.CircuitBreakerConfig
	user       string
	dedup      bool
	batch      Executor
	closers    []io.Closer
}

// Option configures a Client.
type Option func(*options)

// WithInstance sets the instance layer, which overrides the class layer.
func WithInstance(s Settings) Option {
	return func(o *options) { o.instance = s }
}

// WithBackend sets the cache backend on the instance layer.
func WithBackend(b cache.Backend) Option {
	return func(o *options) { o.instance.Cache = b }
}

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithTransportOptions configures the default HTTP transport.
func WithTransportOptions(opts ...TransportOption) Option {
	return func(o *options) { o.topts = append(o.topts, opts...) }
}

// WithLogger sets the logger. Ignored when WithMiddleware or WithObserver is
// given.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMiddleware sets the observability middleware.
func WithMiddleware(m *observe.Middleware) Option {
	return func(o *options) { o.middleware = m }
}

// WithObserver derives the observability middleware from an Observer.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithRateLimit limits how fast calls start.
func WithRateLimit(cfg resilience.RateLimiterConfig) Option {
	return func(o *options) { o.limiter = &cfg }
}

// WithBulkhead bounds the calls in flight across all callers.
func WithBulkhead(cfg resilience.BulkheadConfig) Option {
	return func(o *options) { o.bulkhead = &cfg }
}

// WithCircuitBreaker stops calling the upstream after repeated transient
// failures. IsFailure defaults to IsTransient.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(o *options) { o.breaker = &cfg }
}

// WithUserIdentifier scopes cache keys to user.
func WithUserIdentifier(user string) Option {
	return func(o *options) { o.user = user }
}

// WithDeduplication coalesces concurrent identical cacheable misses into a
// single upstream call.
func WithDeduplication() Option {
	return func(o *options) { o.dedup = true }
}

// WithBatchExecutor replaces the executor used by async batches.
func WithBatchExecutor(e Executor) Option {
	return func(o *options) { o.batch = e }
}

// WithCloser registers c to be closed by Client.Close.
func WithCloser(c io.Closer) Option {
	return func(o *options) {
		if c != nil {
			o.closers = append(o.closers, c)
		}
	}
}

// New creates a client from the class layer and options.
func New(class Settings, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := checkLayers(class, o.instance); err != nil {
		return nil, err
	}

	obs := o.middleware
	if obs == nil && o.observer != nil {
		m, err := observe.MiddlewareFromObserver(o.observer)
		if err != nil {
			return nil, fmt.Errorf("observer: %w", err)
		}
		obs = m
	}
	if obs == nil {
		obs = observe.NewMiddleware(nil, nil, o.logger)
	}

	c := &Client{
		class:    class,
		instance: o.instance,
		obs:      obs,
		jitter:   0.1,
		closers:  o.closers,
	}

	c.transport = o.transport
	if c.transport == nil {
		topts := append([]TransportOption{WithTransportLogger(obs.Logger())}, o.topts...)
		ht := NewHTTPTransport(topts...)
		c.transport = ht
		c.closers = append(c.closers, ht)
	}

	var eopts []resilience.ExecutorOption
	if o.limiter != nil {
		eopts = append(eopts, resilience.WithRateLimiter(resilience.NewRateLimiter(*o.limiter)))
	}
	if o.bulkhead != nil {
		eopts = append(eopts, resilience.WithBulkhead(resilience.NewBulkhead(*o.bulkhead)))
	}
	if o.breaker != nil {
		cfg := *o.breaker
		if cfg.IsFailure == nil {
			cfg.IsFailure = IsTransient
		}
		if cfg.OnStateChange == nil {
			log := obs.Logger()
			cfg.OnStateChange = func(from, to resilience.State) {
				log.Warn(context.Background(), "circuit breaker state changed",
					observe.F("breaker", cfg.Name),
					observe.F("from", from.String()),
					observe.F("to", to.String()),
				)
			}
		}
		eopts = append(eopts, resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(cfg)))
	}
	c.executor = resilience.NewExecutor(eopts...)

	c.batch = o.batch
	if c.batch == nil {
		c.batch = PoolExecutor{MaxWorkers: merge(class, o.instance).MaxWorkers}
	}

	c.caching = newCaching(o.user, o.dedup, obs.Metrics())
	c.hooks = c.caching
	return c, nil
}

// Request executes d with normal caching.
func (c *Client) Request(ctx context.Context, d Descriptor) (*Envelope, error) {
	return c.do(ctx, d, cache.ModeDefault, newID("REQ-", 6))
}

// Refresh executes d without a cache lookup and overwrites the cached entry
// on success.
func (c *Client) Refresh(ctx context.Context, d Descriptor) (*Envelope, error) {
	return c.do(ctx, d, cache.ModeRefresh, newID("REQ-", 6))
}

// Cacheless executes d without touching the cache.
func (c *Client) Cacheless(ctx context.Context, d Descriptor) (*Envelope, error) {
	return c.do(ctx, d, cache.ModeBypass, newID("REQ-", 6))
}

func (c *Client) do(ctx context.Context, d Descriptor, mode cache.Mode, id string) (*Envelope, error) {
	cl, err := c.build(d, mode, id)
	if err != nil {
		c.obs.Logger().WithRequest(observe.RequestMeta{ID: id, Method: d.Method, Endpoint: d.Endpoint}).
			Error(ctx, "request rejected", observe.F("error", err))
		return nil, err
	}
	return c.run(ctx, cl), nil
}

// RequestBatch executes every descriptor and returns one envelope per item
// in input order. With async the items run on the batch executor, bounded
// by MaxWorkers; otherwise they run one after another. An item that cannot
// be built yields a validation envelope.
func (c *Client) RequestBatch(ctx context.Context, descriptors []Descriptor, async bool) []*Envelope {
	var exec Executor = SequentialExecutor{}
	prefix := "SYNC"
	if async {
		exec = c.batch
		prefix = "ASYNC"
	}

	log := c.obs.Logger()
	log.Info(ctx, "batch started",
		observe.F("items", len(descriptors)),
		observe.F("async", async),
	)
	out := exec.Run(ctx, descriptors, func(ctx context.Context, i int, d Descriptor) *Envelope {
		env, err := c.do(ctx, d, cache.ModeDefault, newID(fmt.Sprintf("%s-%d-", prefix, i+1), 4))
		if err != nil {
			return failure(CodeValidation, err.Error())
		}
		return env
	})

	ok := 0
	for _, env := range out {
		if env.OK() {
			ok++
		}
	}
	log.Info(ctx, "batch finished",
		observe.F("items", len(out)),
		observe.F("succeeded", ok),
		observe.F("failed", len(out)-ok),
	)
	return out
}

// EnableCache turns caching back on.
func (c *Client) EnableCache() { c.caching.enabled.Store(true) }

// DisableCache turns caching off for every later call until EnableCache.
func (c *Client) DisableCache() { c.caching.enabled.Store(false) }

// CacheEnabled reports whether caching is on.
func (c *Client) CacheEnabled() bool { return c.caching.enabled.Load() }

// ClearCache drops every entry of the client's backend.
func (c *Client) ClearCache(ctx context.Context) error {
	backend := merge(c.class, c.instance).Cache
	if backend == nil {
		return nil
	}
	if err := cache.NewMiddleware(backend, nil, cache.DefaultPolicy(), nil).Clear(ctx); err != nil {
		return cacheError("clear", err)
	}
	c.obs.Logger().Info(ctx, "cache cleared")
	return nil
}

// ClearCacheMatching drops the entries whose keys match a glob pattern.
// Keys have the form "cache:<METHOD>:<hash>", so "cache:GET:*" drops every
// cached GET.
func (c *Client) ClearCacheMatching(ctx context.Context, pattern string) error {
	backend := merge(c.class, c.instance).Cache
	if backend == nil {
		return nil
	}
	if err := cache.NewMiddleware(backend, nil, cache.DefaultPolicy(), nil).ClearMatching(ctx, pattern); err != nil {
		return cacheError("clear", err)
	}
	c.obs.Logger().Info(ctx, "cache cleared", observe.F("pattern", pattern))
	return nil
}

// InvalidateCache drops the entry d would be cached under.
func (c *Client) InvalidateCache(ctx context.Context, d Descriptor) error {
	d = d.clone()
	eff, err := Resolve(c.class, c.instance, d.callLayer())
	if err != nil {
		return err
	}
	return c.caching.invalidate(ctx, eff, d)
}

// Health checks the cache backend and, when a base URL is configured, the
// upstream.
func (c *Client) Health(ctx context.Context) health.Report {
	eff := merge(c.class, c.instance)
	agg := health.NewAggregator()
	agg.Register("cache", health.NewBackendChecker(eff.Cache, health.BackendCheckerConfig{}))
	if eff.BaseURL != "" {
		agg.Register("upstream", health.NewEndpointChecker(health.EndpointCheckerConfig{
			URL: strings.TrimRight(eff.BaseURL, "/") + "/",
		}))
	}
	return agg.Report(ctx)
}

// Close releases the transport and anything registered with WithCloser.
func (c *Client) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newID returns prefix followed by n hex characters.
func newID(prefix string, n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + id[:n]
}
