package observe

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// RequestMeta describes one outgoing request for telemetry purposes.
type RequestMeta struct {
	ID       string // request id, e.g. REQ-1a2b3c4d
	Method   string
	Endpoint string // path relative to the base URL; low cardinality
	URL      string // full URL; spans only, never metric labels
	Mode     string // cache mode: default|refresh|bypass
}

// SpanName returns the span name for this request.
// Format: http.client.<METHOD>
func (m RequestMeta) SpanName() string {
	method := strings.ToUpper(m.Method)
	if method == "" {
		method = "GET"
	}
	return "http.client." + method
}

// Tracer wraps OpenTelemetry tracing with request span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, res CallResult, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a client span with request attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", strings.ToUpper(meta.Method)),
		attribute.String("http.endpoint", meta.Endpoint),
	}
	if meta.URL != "" {
		attrs = append(attrs, attribute.String("url.full", meta.URL))
	}
	if meta.ID != "" {
		attrs = append(attrs, attribute.String("request.id", meta.ID))
	}
	if meta.Mode != "" {
		attrs = append(attrs, attribute.String("cache.mode", meta.Mode))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the outcome.
func (t *tracerImpl) EndSpan(span trace.Span, res CallResult, err error) {
	if res.StatusCode > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
	}
	span.SetAttributes(attribute.Bool("cache.hit", res.Cached))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ CallResult, _ error) {
	span.End()
}
