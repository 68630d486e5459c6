package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// httpStatusServerError is the threshold for HTTP server errors.
const httpStatusServerError = 500

// statusWriter wraps [http.ResponseWriter] to capture the status code.
type statusWriter struct {
	http.ResponseWriter

	statusCode int
	written    bool
}

// WriteHeader captures the status code before delegating to the wrapped writer.
func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.statusCode = code
		sw.written = true
	}

	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(buf []byte) (int, error) {
	if !sw.written {
		sw.statusCode = http.StatusOK
		sw.written = true
	}

	n, err := sw.ResponseWriter.Write(buf)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}

	return n, nil
}

// HTTPMiddleware returns an [http.Handler] that assigns a request ID, creates
// a server span named "METHOD /path", recovers panics as 500 responses and
// writes one access log line per request.
func HTTPMiddleware(tracer trace.Tracer, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		started := time.Now()

		requestID := hr.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		rw.Header().Set(RequestIDHeader, requestID)

		// Extract W3C traceparent/tracestate/baggage from incoming headers.
		parentCtx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))
		parentCtx = WithRequestID(parentCtx, requestID)

		ctx, span := tracer.Start(parentCtx, hr.Method+" "+hr.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				attribute.String("http.target", hr.URL.Path),
				attribute.String(attrRequestID, requestID),
			),
		)
		defer span.End()

		sw := &statusWriter{ResponseWriter: rw}

		defer func() {
			recovered := recover()
			if recovered != nil {
				span.AddEvent("panic.stack", trace.WithAttributes(
					attribute.String("stack", string(debug.Stack())),
				))
				RecordSpanError(span, fmt.Errorf("panic: %v", recovered), ErrTypePanic, ErrSourceHTTP)
				logger.ErrorContext(ctx, "http.panic", "panic", fmt.Sprint(recovered))

				if !sw.written {
					http.Error(sw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}

			if !sw.written {
				sw.statusCode = http.StatusOK
			}

			span.SetAttributes(semconv.HTTPResponseStatusCode(sw.statusCode))

			if sw.statusCode >= httpStatusServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.statusCode))
			}

			logger.InfoContext(ctx, "http.request",
				"method", hr.Method,
				"path", hr.URL.Path,
				"status", sw.statusCode,
				"duration_ms", time.Since(started).Milliseconds(),
			)
		}()

		next.ServeHTTP(sw, hr.WithContext(ctx))
	})
}
