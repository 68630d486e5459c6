// Package api serves the read-only build query API. Every route delegates to
// the datastore lookups in [queries.Queries] and returns their result as JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/buildtracker/internal/observability"
	"github.com/Sumatoshi-tech/buildtracker/internal/queries"
)

// spanSeparator splits the two ends of a range segment.
const spanSeparator = ".."

// listPrefix precedes the revisions of a list lookup.
const listPrefix = "/api/builds/list/"

// Operation names used for spans, metrics and logs.
const (
	OpByRevision      = "build.by_revision"
	OpByRevisionRange = "builds.by_revision_range"
	OpByTimeRange     = "builds.by_time_range"
	OpByRevisions     = "builds.by_revisions"
	OpRecent          = "builds.recent"
)

// ErrMalformedSpan reports a range segment that is not "start..end".
var ErrMalformedSpan = errors.New("malformed range, expected start..end")

// ErrMalformedRevision reports a revision path segment with a bad escape.
var ErrMalformedRevision = errors.New("malformed revision escape")

type errorBody struct {
	Error string `json:"error"`
}

// Server routes API requests to the datastore lookups.
type Server struct {
	queries queries.Queries
	tracer  trace.Tracer
	metrics *observability.REDMetrics
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithTracer sets the tracer used for per-operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) { s.tracer = tracer }
}

// WithMetrics records RED metrics for every operation.
func WithMetrics(metrics *observability.REDMetrics) Option {
	return func(s *Server) { s.metrics = metrics }
}

// WithLogger sets the logger for failed lookups.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a Server delegating to q.
func New(q queries.Queries, opts ...Option) *Server {
	s := &Server{
		queries: q,
		tracer:  noop.NewTracerProvider().Tracer("api"),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/build/{revision}", s.serve(OpByRevision, s.byRevision))
	mux.HandleFunc("GET /api/builds/range/{span}", s.serve(OpByRevisionRange, s.byRevisionRange))
	mux.HandleFunc("GET /api/builds/time/{span}", s.serve(OpByTimeRange, s.byTimeRange))
	mux.HandleFunc("GET /api/builds/list/{revisions...}", s.serve(OpByRevisions, s.byRevisions))
	mux.HandleFunc("GET /api/builds", s.serve(OpRecent, s.recent))
	mux.HandleFunc("GET /api/builds/{limit}", s.serve(OpRecent, s.recent))
}

// Handler returns an [http.Handler] serving only the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)

	return mux
}

func (s *Server) byRevision(ctx context.Context, hr *http.Request) (any, error) {
	return s.queries.Build.ByRevision(ctx, hr.PathValue("revision"))
}

func (s *Server) byRevisionRange(ctx context.Context, hr *http.Request) (any, error) {
	start, end, err := ParseSpan(hr.PathValue("span"))
	if err != nil {
		return nil, err
	}

	return s.queries.Builds.ByRevisionRange(ctx, start, end)
}

func (s *Server) byTimeRange(ctx context.Context, hr *http.Request) (any, error) {
	start, end, err := ParseTimeSpan(hr.PathValue("span"))
	if err != nil {
		return nil, err
	}

	return s.queries.Builds.ByTimeRange(ctx, start, end)
}

func (s *Server) byRevisions(ctx context.Context, hr *http.Request) (any, error) {
	revisions, err := ParseRevisionList(hr.URL.EscapedPath())
	if err != nil {
		return nil, err
	}

	return s.queries.Builds.ByRevisions(ctx, revisions)
}

// ParseRevisionList extracts the revisions of an escaped list path. Segments
// are split before unescaping so a revision may contain an encoded slash.
func ParseRevisionList(escapedPath string) ([]string, error) {
	_, rest, _ := strings.Cut(escapedPath, listPrefix)

	var revisions []string

	for segment := range strings.SplitSeq(rest, "/") {
		if segment == "" {
			continue
		}

		revision, err := url.PathUnescape(segment)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedRevision, segment)
		}

		revisions = append(revisions, revision)
	}

	return revisions, nil
}

func (s *Server) recent(ctx context.Context, hr *http.Request) (any, error) {
	return s.queries.Builds.Recent(ctx, hr.PathValue("limit"))
}

type queryFunc func(ctx context.Context, hr *http.Request) (any, error)

func (s *Server) serve(op string, query queryFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, hr *http.Request) {
		started := time.Now()

		ctx, span := s.tracer.Start(hr.Context(), op, trace.WithAttributes(
			attribute.String("http.target", hr.URL.Path),
		))
		defer span.End()

		if s.metrics != nil {
			done := s.metrics.TrackInflight(ctx, op)
			defer done()
		}

		result, err := query(ctx, hr)

		status := observability.StatusOK
		if err != nil {
			status = observability.StatusError
		}

		if s.metrics != nil {
			s.metrics.RecordRequest(ctx, op, status, time.Since(started))
		}

		if errors.Is(err, ErrMalformedSpan) || errors.Is(err, ErrMalformedRevision) {
			observability.RecordSpanError(span, err, observability.ErrTypeValidation, observability.ErrSourceAPI)
			writeJSON(ctx, s.logger, rw, http.StatusBadRequest, errorBody{Error: err.Error()})

			return
		}

		if err != nil {
			observability.RecordSpanError(span, err, observability.ErrTypeDependencyUnavailable, observability.ErrSourceStore)
			s.logger.ErrorContext(ctx, "build query failed", "op", op, "error", err)
			writeJSON(ctx, s.logger, rw, http.StatusInternalServerError,
				errorBody{Error: http.StatusText(http.StatusInternalServerError)})

			return
		}

		writeJSON(ctx, s.logger, rw, http.StatusOK, result)
	}
}

// ParseSpan splits a "start..end" segment. Both ends must be non-empty.
func ParseSpan(segment string) (start, end string, err error) {
	start, end, found := strings.Cut(segment, spanSeparator)
	if !found || start == "" || end == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedSpan, segment)
	}

	return start, end, nil
}

// ParseTimeSpan parses a "start..end" segment of millisecond timestamps.
func ParseTimeSpan(segment string) (start, end int64, err error) {
	rawStart, rawEnd, err := ParseSpan(segment)
	if err != nil {
		return 0, 0, err
	}

	start, startErr := strconv.ParseInt(rawStart, 10, 64)
	end, endErr := strconv.ParseInt(rawEnd, 10, 64)

	if startErr != nil || endErr != nil {
		return 0, 0, fmt.Errorf("%w: %q is not a millisecond range", ErrMalformedSpan, segment)
	}

	return start, end, nil
}

// writeJSON encodes the given value as JSON and writes it with the status code.
func writeJSON(ctx context.Context, logger *slog.Logger, rw http.ResponseWriter, code int, value any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	encodeErr := json.NewEncoder(rw).Encode(value)
	if encodeErr != nil {
		logger.ErrorContext(ctx, "failed to encode JSON response", "error", encodeErr)
	}
}
