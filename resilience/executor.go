package resilience

import (
	"context"
	"time"
)

// Executor composes multiple resilience patterns.
//
// An Executor is immutable once built. With derives a new one that shares
// the stateful parts (breaker, limiter, bulkhead), which lets a client keep
// those per upstream while choosing retry and timeout per call.
type Executor struct {
	circuitBreaker *CircuitBreaker
	retry          *Retry
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// With returns a copy of e with opts applied.
func (e *Executor) With(opts ...ExecutorOption) *Executor {
	cp := *e
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.circuitBreaker = cb }
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithRateLimiter adds rate limiting to the executor.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.rateLimiter = rl }
}

// WithBulkhead adds bulkhead isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithTimeout bounds every attempt by timeout. Zero removes the bound.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		if timeout <= 0 {
			e.timeout = nil
			return
		}
		e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
	}
}

// Retry returns the configured retry policy, or nil.
func (e *Executor) Retry() *Retry { return e.retry }

// CircuitBreaker returns the configured breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker { return e.circuitBreaker }

// Execute runs op through the configured patterns, outermost first: rate
// limiter, bulkhead, circuit breaker, retry, then the per-attempt timeout.
// The breaker sees one outcome per retried call, not one per attempt.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	var layers []func(context.Context, func(context.Context) error) error
	if e.timeout != nil {
		layers = append(layers, e.timeout.Execute)
	}
	if e.retry != nil {
		layers = append(layers, e.retry.Execute)
	}
	if e.circuitBreaker != nil {
		layers = append(layers, e.circuitBreaker.Execute)
	}
	if e.bulkhead != nil {
		layers = append(layers, e.bulkhead.Execute)
	}
	if e.rateLimiter != nil {
		layers = append(layers, e.rateLimiter.Execute)
	}

	run := op
	for _, layer := range layers {
		inner := run
		run = func(ctx context.Context) error { return layer(ctx, inner) }
	}
	return run(ctx)
}
