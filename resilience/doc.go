// Package resilience provides the failure handling used around outgoing
// requests.
//
//   - Retry: attempt counting from 0, exponential/linear/constant backoff
//     with ±jitter and a hard cap, and a RetryIf predicate so that only
//     transient failures are retried.
//   - Timeout: per-attempt deadlines reported as ErrTimeout.
//   - Circuit Breaker: sony/gobreaker behind a small adapter.
//   - Rate Limiter: golang.org/x/time/rate token bucket.
//   - Bulkhead: x/sync semaphore bounding in-flight operations.
//
// Executor composes them:
//
//	shared := resilience.NewExecutor(
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 50})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	)
//
//	perCall := shared.With(resilience.WithRetry(resilience.NewRetry(resilience.DefaultRetryConfig())))
//	err := perCall.Execute(ctx, func(ctx context.Context) error {
//	    return callUpstream(ctx)
//	})
package resilience
