package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/buildtracker/internal/api"
	"github.com/Sumatoshi-tech/buildtracker/internal/observability"
	"github.com/Sumatoshi-tech/buildtracker/internal/queries"
	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
)

var errTacos = errors.New("tacos")

var testBuild = build.Build{
	Meta: build.Meta{Revision: "123", ParentRevision: "456", Timestamp: 1550000000000},
	Artifacts: []build.Artifact{
		{Name: "main", Hash: "abc", Sizes: map[string]int64{"gzip": 100}},
	},
}

type call struct {
	method string
	args   []any
}

// fakeQueries records every lookup and answers with testBuild or err.
type fakeQueries struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (fq *fakeQueries) record(method string, args ...any) {
	fq.mu.Lock()
	defer fq.mu.Unlock()

	fq.calls = append(fq.calls, call{method: method, args: args})
}

func (fq *fakeQueries) ByRevision(_ context.Context, revision string) (build.Build, error) {
	fq.record("ByRevision", revision)

	return testBuild, fq.err
}

func (fq *fakeQueries) ByRevisions(_ context.Context, revisions []string) ([]build.Build, error) {
	fq.record("ByRevisions", revisions)

	return []build.Build{testBuild}, fq.err
}

func (fq *fakeQueries) ByRevisionRange(_ context.Context, start, end string) ([]build.Build, error) {
	fq.record("ByRevisionRange", start, end)

	return []build.Build{testBuild}, fq.err
}

func (fq *fakeQueries) ByTimeRange(_ context.Context, start, end int64) ([]build.Build, error) {
	fq.record("ByTimeRange", start, end)

	return []build.Build{testBuild}, fq.err
}

func (fq *fakeQueries) Recent(_ context.Context, limit string) ([]build.Build, error) {
	fq.record("Recent", limit)

	return []build.Build{testBuild}, fq.err
}

func serve(t *testing.T, fq *fakeQueries, path string, opts ...api.Option) *httptest.ResponseRecorder {
	t.Helper()

	handler := api.New(queries.FromSource(fq), opts...).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))

	return rec
}

func TestRoutes_Delegate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		want   call
		single bool
	}{
		{"by revision", "/api/build/1234567890", call{"ByRevision", []any{"1234567890"}}, true},
		{"revision range", "/api/builds/range/1234567..abcdef", call{"ByRevisionRange", []any{"1234567", "abcdef"}}, false},
		{"time range", "/api/builds/time/1234567..2345678", call{"ByTimeRange", []any{int64(1234567), int64(2345678)}}, false},
		{"revision list", "/api/builds/list/1234567/abcdef/239587", call{"ByRevisions", []any{[]string{"1234567", "abcdef", "239587"}}}, false},
		{"revision list with encoded slash", "/api/builds/list/feature%2Fx/abc", call{"ByRevisions", []any{[]string{"feature/x", "abc"}}}, false},
		{"recent", "/api/builds", call{"Recent", []any{""}}, false},
		{"recent with limit", "/api/builds/4", call{"Recent", []any{"4"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fq := &fakeQueries{}
			rec := serve(t, fq, tt.path)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, []call{tt.want}, fq.calls)

			if tt.single {
				var got build.Build

				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, testBuild, got)

				return
			}

			var got []build.Build

			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, []build.Build{testBuild}, got)
		})
	}
}

func TestRoutes_CollaboratorFailure(t *testing.T) {
	t.Parallel()

	paths := []string{
		"/api/build/1234567890",
		"/api/builds/range/1234567..abcdef",
		"/api/builds/time/1234567..2345678",
		"/api/builds/list/1234567/abcdef/239587",
		"/api/builds",
		"/api/builds/4",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			fq := &fakeQueries{err: errTacos}
			rec := serve(t, fq, path)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "tacos")
			assert.Len(t, fq.calls, 1)
		})
	}
}

func TestRoutes_MalformedSpan(t *testing.T) {
	t.Parallel()

	paths := []string{
		"/api/builds/range/1234567",
		"/api/builds/range/..abcdef",
		"/api/builds/time/123..later",
		"/api/builds/time/123-456",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			fq := &fakeQueries{}
			rec := serve(t, fq, path)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, fq.calls)
		})
	}
}

func TestRoutes_RejectOtherMethods(t *testing.T) {
	t.Parallel()

	fq := &fakeQueries{}
	handler := api.New(queries.FromSource(fq)).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/builds", http.NoBody))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, fq.calls)
}

func TestParseTimeSpan(t *testing.T) {
	t.Parallel()

	start, end, err := api.ParseTimeSpan("10..20")
	require.NoError(t, err)
	assert.Equal(t, int64(10), start)
	assert.Equal(t, int64(20), end)

	_, _, err = api.ParseTimeSpan("10..")
	require.ErrorIs(t, err, api.ErrMalformedSpan)
}

func TestParseRevisionList(t *testing.T) {
	t.Parallel()

	revisions, err := api.ParseRevisionList("/api/builds/list/release%2F1.2/abc//def")
	require.NoError(t, err)
	assert.Equal(t, []string{"release/1.2", "abc", "def"}, revisions)

	_, err = api.ParseRevisionList("/api/builds/list/abc/%zz")
	require.ErrorIs(t, err, api.ErrMalformedRevision)
}

func TestServer_RecordsTelemetry(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	rec := serve(t, &fakeQueries{err: errTacos}, "/api/builds/4",
		api.WithTracer(tp.Tracer("test")), api.WithMetrics(red))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, api.OpRecent, spans[0].Name)

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}

	assert.True(t, names["buildtracker.requests.total"])
	assert.True(t, names["buildtracker.errors.total"])
}
