package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "buildtracker.requests.total"
	metricRequestDuration  = "buildtracker.request.duration.seconds"
	metricErrorsTotal      = "buildtracker.errors.total"
	metricInflightRequests = "buildtracker.inflight.requests"
	metricStoredBuilds     = "buildtracker.store.builds"

	attrOp     = "op"
	attrStatus = "status"

	// StatusOK marks a request that completed successfully.
	StatusOK = "ok"
	// StatusError marks a request that failed.
	StatusError = "error"
)

// durationBucketBoundaries covers 1ms to 10s; build queries are single
// SQLite lookups and dashboard renders.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// REDMetrics holds the OTel instruments for Rate, Error, Duration metrics.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	requestsTotal, requestsErr := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of requests"), metric.WithUnit("{request}"))
	requestDuration, durationErr := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Request duration in seconds"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...))
	errorsTotal, errorsErr := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of errors"), metric.WithUnit("{error}"))
	inflight, inflightErr := mt.Int64UpDownCounter(metricInflightRequests,
		metric.WithDescription("Number of in-flight requests"), metric.WithUnit("{request}"))

	err := errors.Join(requestsErr, durationErr, errorsErr, inflightErr)
	if err != nil {
		return nil, fmt.Errorf("create RED metrics: %w", err)
	}

	return &REDMetrics{
		requestsTotal:    requestsTotal,
		requestDuration:  requestDuration,
		errorsTotal:      errorsTotal,
		inflightRequests: inflight,
	}, nil
}

// RecordRequest records a completed request with its operation, status, and duration.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
		))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// BuildCounter reports how many builds the datastore holds.
type BuildCounter interface {
	Count(ctx context.Context) (int, error)
}

// RegisterStoreMetrics registers an observable gauge that samples the number
// of stored builds on each collection. The returned function unregisters it.
func RegisterStoreMetrics(mt metric.Meter, counter BuildCounter) (func() error, error) {
	stored, err := mt.Int64ObservableGauge(metricStoredBuilds,
		metric.WithDescription("Number of builds in the datastore"), metric.WithUnit("{build}"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStoredBuilds, err)
	}

	registration, err := mt.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		count, countErr := counter.Count(ctx)
		if countErr != nil {
			return countErr
		}

		obs.ObserveInt64(stored, int64(count))

		return nil
	}, stored)
	if err != nil {
		return nil, fmt.Errorf("register store metrics callback: %w", err)
	}

	return registration.Unregister, nil
}
