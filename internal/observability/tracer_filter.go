package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// probeSpans are the request spans produced by liveness probes and metric
// scrapes. They fire every few seconds and carry no useful trace data.
var probeSpans = []string{
	"GET /healthz",
	"GET /readyz",
	"GET /metrics",
}

// filteringTracerProvider wraps a real TracerProvider and replaces spans
// with suppressed names by no-op spans.
type filteringTracerProvider struct {
	embedded.TracerProvider

	delegate trace.TracerProvider
	noop     trace.TracerProvider
	suppress map[string]bool
}

// NewFilteringTracerProvider wraps delegate so that spans named in suppressed
// are never recorded. With no names the delegate is returned unchanged.
func NewFilteringTracerProvider(delegate trace.TracerProvider, suppressed ...string) trace.TracerProvider {
	if len(suppressed) == 0 {
		return delegate
	}

	suppress := make(map[string]bool, len(suppressed))
	for _, name := range suppressed {
		suppress[name] = true
	}

	return &filteringTracerProvider{
		delegate: delegate,
		noop:     nooptrace.NewTracerProvider(),
		suppress: suppress,
	}
}

// Tracer returns a tracer that skips suppressed span names.
func (f *filteringTracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &filteringTracer{
		delegate: f.delegate.Tracer(name, opts...),
		noop:     f.noop.Tracer(name, opts...),
		suppress: f.suppress,
	}
}

type filteringTracer struct {
	embedded.Tracer

	delegate trace.Tracer
	noop     trace.Tracer
	suppress map[string]bool
}

// Start creates a span, returning a no-op span for suppressed names.
func (f *filteringTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if f.suppress[name] {
		return f.noop.Start(ctx, name, opts...)
	}

	return f.delegate.Start(ctx, name, opts...)
}
