package exporters

import (
	"bytes"
	"context"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewTracingExporter(t *testing.T) {
	ctx := context.Background()

	_, err := NewTracingExporter(ctx, "zipkin")
	assert.ErrorIs(t, err, ErrUnknownExporter)

	var buf bytes.Buffer
	exp, err := NewTracingExporter(ctx, "stdout", WithWriter(&buf))
	require.NoError(t, err)
	assert.NotNil(t, exp)

	exp, err = NewTracingExporter(ctx, "none")
	require.NoError(t, err)
	assert.NotNil(t, exp)
}

func TestNewTracingExporter_MissingEndpoints(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_JAEGER_ENDPOINT", "")

	_, err := NewTracingExporter(context.Background(), "otlp")
	assert.ErrorIs(t, err, ErrEndpointNotConfigured)

	_, err = NewTracingExporter(context.Background(), "jaeger")
	assert.ErrorIs(t, err, ErrEndpointNotConfigured)
}

func TestNewMetricsReader(t *testing.T) {
	ctx := context.Background()

	_, err := NewMetricsReader(ctx, "statsd")
	assert.ErrorIs(t, err, ErrUnknownExporter)

	for _, name := range []string{"stdout", "none", ""} {
		reader, err := NewMetricsReader(ctx, name, WithWriter(&bytes.Buffer{}))
		require.NoError(t, err, name)
		assert.NotNil(t, reader, name)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	_, err = NewMetricsReader(ctx, "otlp")
	assert.ErrorIs(t, err, ErrEndpointNotConfigured)
}

func TestNewMetricsReader_PrometheusRegisterer(t *testing.T) {
	reg := promclient.NewRegistry()
	reader, err := NewMetricsReader(context.Background(), "prometheus", WithRegisterer(reg))
	require.NoError(t, err)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	counter, err := mp.Meter("test").Int64Counter("http.client.requests")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "http_client_requests_total")
}
