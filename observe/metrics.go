package observe

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records request level metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one finished call, cache hits included.
	RecordRequest(ctx context.Context, meta RequestMeta, res CallResult, duration time.Duration, err error)

	// RecordCache records a cache lookup outcome.
	RecordCache(ctx context.Context, meta RequestMeta, hit bool)

	// RecordRetry records a retry scheduled after attempt failed.
	RecordRetry(ctx context.Context, meta RequestMeta, attempt int)
}

type metricsImpl struct {
	requests    metric.Int64Counter
	errors      metric.Int64Counter
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	retries     metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewMetrics creates the request instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.requests, err = meter.Int64Counter("http.client.requests",
		metric.WithDescription("Total number of client requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.errors, err = meter.Int64Counter("http.client.errors",
		metric.WithDescription("Client requests that produced an error envelope"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.cacheHits, err = meter.Int64Counter("http.client.cache.hits",
		metric.WithDescription("Cache lookups that returned an entry"),
		metric.WithUnit("{lookup}")); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = meter.Int64Counter("http.client.cache.misses",
		metric.WithDescription("Cache lookups that missed"),
		metric.WithUnit("{lookup}")); err != nil {
		return nil, err
	}
	if m.retries, err = meter.Int64Counter("http.client.retries",
		metric.WithDescription("Retries scheduled after a transient failure"),
		metric.WithUnit("{retry}")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("http.client.duration_ms",
		metric.WithDescription("Client request duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	return m, nil
}

func baseAttrs(meta RequestMeta) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.request.method", strings.ToUpper(meta.Method)),
		attribute.String("http.endpoint", meta.Endpoint),
	}
}

func (m *metricsImpl) RecordRequest(ctx context.Context, meta RequestMeta, res CallResult, duration time.Duration, err error) {
	attrs := append(baseAttrs(meta),
		attribute.Int("http.response.status_code", res.StatusCode),
		attribute.Bool("cache.hit", res.Cached),
	)
	opt := metric.WithAttributes(attrs...)

	m.requests.Add(ctx, 1, opt)
	if err != nil {
		m.errors.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordCache(ctx context.Context, meta RequestMeta, hit bool) {
	opt := metric.WithAttributes(baseAttrs(meta)...)
	if hit {
		m.cacheHits.Add(ctx, 1, opt)
		return
	}
	m.cacheMisses.Add(ctx, 1, opt)
}

func (m *metricsImpl) RecordRetry(ctx context.Context, meta RequestMeta, attempt int) {
	m.retries.Add(ctx, 1, metric.WithAttributes(append(baseAttrs(meta),
		attribute.Int("retry.attempt", attempt))...))
}

type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordRequest(context.Context, RequestMeta, CallResult, time.Duration, error) {}
func (noopMetrics) RecordCache(context.Context, RequestMeta, bool)                              {}
func (noopMetrics) RecordRetry(context.Context, RequestMeta, int)                               {}
