// Package observe provides observability primitives for outgoing requests.
//
// It is a pure instrumentation library: an OpenTelemetry backed Observer, a
// JSON structured Logger with field redaction, request metrics, and a
// Middleware that wraps one request with a span, metrics, and a log line.
package observe
