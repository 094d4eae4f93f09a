package observe

import (
	"context"
	"time"
)

// CallResult is what the middleware needs to know about a finished call.
type CallResult struct {
	StatusCode int
	Cached     bool
}

// CallFunc is the signature of a single instrumented request.
type CallFunc func(ctx context.Context, meta RequestMeta) (CallResult, error)

// Middleware wraps single requests with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe CallFunc.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components become no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Nop returns a Middleware that records nothing.
func Nop() *Middleware { return NewMiddleware(nil, nil, nil) }

// Metrics returns the metrics sink, for events inside a call.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the base logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Wrap wraps fn with a span, request metrics, and a completion log line.
func (m *Middleware) Wrap(fn CallFunc) CallFunc {
	return func(ctx context.Context, meta RequestMeta) (CallResult, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		res, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, res, err)
		m.metrics.RecordRequest(ctx, meta, res, duration, err)

		log := m.logger.WithRequest(meta)
		fields := []Field{
			F("duration_ms", float64(duration.Microseconds())/1000),
			F("status", res.StatusCode),
			F("cached", res.Cached),
		}
		if err != nil {
			log.Error(ctx, "request failed", append(fields, F("error", err))...)
		} else {
			log.Info(ctx, "request completed", fields...)
		}

		return res, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
