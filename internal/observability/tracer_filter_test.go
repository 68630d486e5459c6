package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/buildtracker/internal/observability"
)

func newTestProvider() (*tracetest.InMemoryExporter, trace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	return exporter, tp
}

func TestFilteringProvider_SuppressedSpan(t *testing.T) {
	t.Parallel()

	exporter, base := newTestProvider()
	fp := observability.NewFilteringTracerProvider(base, "GET /healthz")

	tracer := fp.Tracer("buildtracker")

	_, probe := tracer.Start(context.Background(), "GET /healthz")
	probe.End()

	_, query := tracer.Start(context.Background(), "GET /api/builds/recent")
	query.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/builds/recent", spans[0].Name)
}

func TestFilteringProvider_NoSuppression(t *testing.T) {
	t.Parallel()

	_, base := newTestProvider()

	assert.Same(t, base, observability.NewFilteringTracerProvider(base))
}

func TestFilteringProvider_SuppressedSpanIsNotRecording(t *testing.T) {
	t.Parallel()

	_, base := newTestProvider()
	fp := observability.NewFilteringTracerProvider(base, "GET /metrics")

	_, span := fp.Tracer("buildtracker").Start(context.Background(), "GET /metrics")
	defer span.End()

	assert.False(t, span.IsRecording())
}
