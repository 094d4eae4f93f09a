package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay by Multiplier each retry.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// RetryConfig configures the retry behavior.
//
// Attempts are counted from 0: attempt 0 is the first try, and with
// MaxRetries=n the operation runs at most n+1 times.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero disables retrying. Negative values are treated as zero.
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps every delay, jitter included.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter randomizes each delay by up to ±Jitter of its value.
	// 0 disables jitter; values above 1 are clamped to 1.
	Jitter float64

	// RetryIf determines if an error should trigger a retry.
	// Default: all non-nil errors trigger retry.
	RetryIf func(err error) bool

	// OnRetry is called before sleeping ahead of a retry. attempt is the
	// attempt that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig returns 3 retries with 100ms exponential backoff,
// ±10% jitter and a 10s cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Strategy:     BackoffExponential,
		Jitter:       0.1,
	}
}

// Retry implements retry with backoff.
type Retry struct {
	config RetryConfig
	jitter func() float64 // uniform in [0,1)
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Jitter < 0 {
		config.Jitter = 0
	}
	if config.Jitter > 1 {
		config.Jitter = 1
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}

	// #nosec G404 -- jitter is non-cryptographic timing variance.
	return &Retry{config: config, jitter: rand.Float64}
}

// ShouldRetry reports whether the failure of attempt (0-based) warrants
// another try, and how long to wait before it.
func (r *Retry) ShouldRetry(err error, attempt int) (bool, time.Duration) {
	if err == nil || attempt >= r.config.MaxRetries {
		return false, 0
	}
	if !r.config.RetryIf(err) {
		return false, 0
	}
	return true, r.Delay(attempt)
}

// Execute runs the operation, retrying while ShouldRetry allows it.
//
// The error of the final attempt is returned. When that error was still
// retryable but the budget was spent it is wrapped with ErrMaxRetriesExceeded.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		retry, delay := r.ShouldRetry(err, attempt)
		if !retry {
			if attempt > 0 && attempt >= r.config.MaxRetries && r.config.RetryIf(err) {
				return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
			}
			return err
		}

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Delay returns the backoff before the retry that follows attempt (0-based).
// The result is never negative and never exceeds MaxDelay.
func (r *Retry) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	var base float64
	switch r.config.Strategy {
	case BackoffConstant:
		base = float64(r.config.InitialDelay)
	case BackoffLinear:
		base = float64(r.config.InitialDelay) * float64(attempt+1)
	default:
		base = float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt))
	}

	limit := float64(r.config.MaxDelay)
	if base > limit || math.IsInf(base, 0) || math.IsNaN(base) {
		base = limit
	}

	if r.config.Jitter > 0 {
		// uniform in [-Jitter, +Jitter)
		base += base * r.config.Jitter * (2*r.jitter() - 1)
	}

	if base < 0 {
		base = 0
	}
	if base > limit {
		base = limit
	}
	return time.Duration(base)
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
