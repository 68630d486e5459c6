package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Error classifications recorded as the error.type span attribute.
const (
	ErrTypeValidation            = "validation"
	ErrTypeNotFound              = "not_found"
	ErrTypeDependencyUnavailable = "dependency_unavailable"
	ErrTypePanic                 = "panic"
	ErrTypeRender                = "render"
)

// Error sources recorded as the error.source span attribute.
const (
	ErrSourceAPI        = "api"
	ErrSourceStore      = "store"
	ErrSourceDependency = "dependency"
	ErrSourceHTTP       = "http"
	ErrSourceDashboard  = "dashboard"
)

const (
	attrErrorType   = "error.type"
	attrErrorSource = "error.source"
)

// RecordSpanError records err on span, marks the span failed and tags it
// with the error type and, when non-empty, the error source.
func RecordSpanError(span trace.Span, err error, errType, source string) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(attrErrorType, errType))

	if source != "" {
		span.SetAttributes(attribute.String(attrErrorSource, source))
	}
}
