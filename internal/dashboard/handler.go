package dashboard

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/buildtracker/internal/observability"
	"github.com/Sumatoshi-tech/buildtracker/pkg/filter"
)

// OpRender names the dashboard render operation in spans and metrics.
const OpRender = "dashboard.render"

// Handler serves the dashboard page for every non-API path.
type Handler struct {
	cfg     Config
	fetcher Fetcher
	tracer  trace.Tracer
	metrics *observability.REDMetrics
	logger  *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithTracer sets the tracer used for render spans.
func WithTracer(tracer trace.Tracer) HandlerOption {
	return func(h *Handler) { h.tracer = tracer }
}

// WithMetrics records RED metrics for every render.
func WithMetrics(metrics *observability.REDMetrics) HandlerOption {
	return func(h *Handler) { h.metrics = metrics }
}

// WithLogger sets the logger for failed fetches and renders.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler creates a dashboard Handler fetching builds through fetcher.
// Each request runs its own fetch, so concurrent viewers never share state.
func NewHandler(cfg Config, fetcher Fetcher, opts ...HandlerOption) *Handler {
	h := &Handler{
		cfg:     cfg,
		fetcher: fetcher,
		tracer:  noop.NewTracerProvider().Tracer("dashboard"),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Register adds the dashboard as the catch-all GET route of mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /", h)
}

// ServeHTTP renders the dashboard for the request URL.
func (h *Handler) ServeHTTP(rw http.ResponseWriter, hr *http.Request) {
	started := time.Now()

	ctx, span := h.tracer.Start(hr.Context(), OpRender, trace.WithAttributes(
		attribute.String("http.target", hr.URL.Path),
	))
	defer span.End()

	if h.metrics != nil {
		done := h.metrics.TrackInflight(ctx, OpRender)
		defer done()
	}

	status := observability.StatusOK
	defer func() {
		if h.metrics != nil {
			h.metrics.RecordRequest(ctx, OpRender, status, time.Since(started))
		}
	}()

	route, err := ParseRoute(hr.URL)
	if err != nil {
		status = observability.StatusError
		observability.RecordSpanError(span, err, observability.ErrTypeNotFound, observability.ErrSourceDashboard)
		http.NotFound(rw, hr)

		return
	}

	state := NewState(h.cfg).Navigate(route)
	query := state.FetchQuery()

	if len(route.Filters) > 0 {
		filters, compileErr := filter.Compile(route.Filters)
		if compileErr != nil {
			status = observability.StatusError
			observability.RecordSpanError(span, compileErr, observability.ErrTypeValidation, observability.ErrSourceDashboard)
			http.Error(rw, compileErr.Error(), http.StatusBadRequest)

			return
		}

		state, query = state.ChangeFilters(filters, route.StartTime, route.EndTime)
	}

	code := http.StatusOK

	result, fetchErr := h.fetcher.GetBuilds(ctx, query)
	if fetchErr != nil {
		status = observability.StatusError
		code = http.StatusBadGateway
		observability.RecordSpanError(span, fetchErr, observability.ErrTypeDependencyUnavailable, observability.ErrSourceDependency)
		h.logger.ErrorContext(ctx, "dashboard fetch failed", "error", fetchErr)
	} else {
		state = state.Load(result, route)
		if route.Info != "" {
			state = state.ShowBuildInfo(route.Info)
		}
	}

	span.SetAttributes(attribute.Int("builds", len(state.Builds)))

	var buf bytes.Buffer

	renderErr := Render(&buf, h.cfg, state, fetchErr)
	if renderErr != nil {
		status = observability.StatusError
		observability.RecordSpanError(span, renderErr, observability.ErrTypeRender, observability.ErrSourceDashboard)
		h.logger.ErrorContext(ctx, "dashboard render failed", "error", renderErr)
		http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.WriteHeader(code)

	_, writeErr := buf.WriteTo(rw)
	if writeErr != nil {
		h.logger.DebugContext(ctx, "dashboard write failed", "error", writeErr)
	}
}
