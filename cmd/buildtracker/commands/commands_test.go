package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/buildtracker/cmd/buildtracker/commands"
	"github.com/Sumatoshi-tech/buildtracker/internal/client"
	"github.com/Sumatoshi-tech/buildtracker/internal/config"
	"github.com/Sumatoshi-tech/buildtracker/internal/dashboard"
	"github.com/Sumatoshi-tech/buildtracker/internal/observability"
	"github.com/Sumatoshi-tech/buildtracker/internal/queries"
	"github.com/Sumatoshi-tech/buildtracker/internal/store"
	"github.com/Sumatoshi-tech/buildtracker/internal/terminal"
	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
	"github.com/Sumatoshi-tech/buildtracker/pkg/comparator"
)

const buildsJSON = `[
  {"meta": {"revision": "aaaaaaa1111", "timestamp": 100},
   "artifacts": [{"name": "main", "hash": "a", "sizes": {"gzip": 1000}},
                 {"name": "test-helpers", "hash": "t", "sizes": {"gzip": 10}}]},
  {"meta": {"revision": "bbbbbbb2222", "timestamp": 200},
   "artifacts": [{"name": "main", "hash": "b", "sizes": {"gzip": 1500}},
                 {"name": "test-helpers", "hash": "t", "sizes": {"gzip": 10}}]}
]`

const testConfigYAML = `
dashboard:
  artifact_filters: ["^test-"]
  mode: baseline
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "buildtracker", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String(commands.ConfigFlag, "", "")
	root.AddCommand(commands.NewImportCommand(), commands.NewCompareCommand(), commands.NewWatchCommand())

	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := newRoot()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

// importedStore writes a config file and imports buildsJSON into a fresh
// database, returning both paths.
func importedStore(t *testing.T) (configPath, dbPath string) {
	t.Helper()

	dir := t.TempDir()
	configPath = writeFile(t, dir, "buildtracker.yaml", testConfigYAML)
	dbPath = filepath.Join(dir, "builds.db")
	buildsPath := writeFile(t, dir, "builds.json", buildsJSON)

	out, err := execute(t, "import", "--config", configPath, "--store", dbPath, buildsPath)
	require.NoError(t, err)
	assert.Equal(t, "imported 2 builds from 1 files\n", out)

	return configPath, dbPath
}

func seededStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, st.Close()) })

	for i, revision := range []string{"aaaaaaa1111", "bbbbbbb2222"} {
		require.NoError(t, st.Insert(context.Background(), build.Build{
			Meta: build.Meta{Revision: revision, Timestamp: int64(i+1) * 100},
			Artifacts: []build.Artifact{
				{Name: "main", Hash: revision, Sizes: map[string]int64{"gzip": int64(i+1) * 1000}},
			},
		}))
	}

	return st
}

func TestObservabilityConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Server:  config.ServerConfig{ShutdownTimeoutSec: 7},
		Logging: config.LoggingConfig{Level: "debug", JSON: true},
		Observability: config.ObservabilityConfig{
			Environment:  "staging",
			OTLPEndpoint: "collector:4317",
			OTLPHeaders:  "x-token=abc",
			OTLPInsecure: true,
			SampleRatio:  0.5,
			Prometheus:   true,
		},
	}

	serve := commands.ObservabilityConfig(cfg, observability.ModeServe)
	assert.Equal(t, "buildtracker", serve.ServiceName)
	assert.Equal(t, "staging", serve.Environment)
	assert.Equal(t, observability.ModeServe, serve.Mode)
	assert.Equal(t, map[string]string{"x-token": "abc"}, serve.OTLPHeaders)
	assert.True(t, serve.OTLPInsecure)
	assert.InDelta(t, 0.5, serve.SampleRatio, 1e-9)
	assert.True(t, serve.PrometheusEnabled)
	assert.True(t, serve.LogJSON)
	assert.Equal(t, 7, serve.ShutdownTimeoutSec)
	assert.Equal(t, "DEBUG", serve.LogLevel.String())

	watch := commands.ObservabilityConfig(cfg, observability.ModeWatch)
	assert.False(t, watch.PrometheusEnabled)
}

func TestDashboardConfig(t *testing.T) {
	t.Parallel()

	dashCfg, err := commands.DashboardConfig(&config.Config{Dashboard: config.DashboardConfig{
		ArtifactFilters: []string{"^test-"},
		Mode:            "consecutive",
	}})
	require.NoError(t, err)
	assert.Equal(t, comparator.ModeConsecutive, dashCfg.Mode)
	assert.Equal(t, dashboard.DefaultSizeKey, dashCfg.SizeKey)
	assert.Len(t, dashCfg.ArtifactFilters, 1)

	_, err = commands.DashboardConfig(&config.Config{Dashboard: config.DashboardConfig{ArtifactFilters: []string{"("}}})
	require.Error(t, err)
}

func TestNewServerMux(t *testing.T) {
	t.Parallel()

	st := seededStore(t)
	dashCfg, err := dashboard.NewConfig(nil, nil, "", comparator.ModeBaseline)
	require.NoError(t, err)

	server := httptest.NewServer(commands.NewServerMux(commands.ServerDeps{
		Queries:        queries.FromSource(st),
		Dashboard:      dashCfg,
		Tracer:         noop.NewTracerProvider().Tracer("test"),
		Logger:         observability.NewLogger(observability.DefaultConfig(), io.Discard),
		MetricsHandler: http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) { rw.WriteHeader(http.StatusTeapot) }),
		ReadyChecks:    map[string]observability.ReadyCheck{"store": st.Ping},
	}))
	t.Cleanup(server.Close)

	tests := []struct {
		path string
		code int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusTeapot},
		{"/api/builds", http.StatusOK},
		{"/api/build/aaaaaaa1111", http.StatusOK},
		{"/api/unknown/route/here", http.StatusNotFound},
		{"/", http.StatusOK},
		{"/All/aaaaaaa+bbbbbbb", http.StatusOK},
		{"/a/b/c", http.StatusNotFound},
	}

	for _, tt := range tests {
		resp, getErr := http.Get(server.URL + tt.path) //nolint:noctx // test request.
		require.NoError(t, getErr, tt.path)
		require.NoError(t, resp.Body.Close())

		assert.Equal(t, tt.code, resp.StatusCode, tt.path)
		assert.NotEmpty(t, resp.Header.Get(observability.RequestIDHeader), tt.path)
	}

	resp, err := http.Get(server.URL + "/api/builds") //nolint:noctx // test request.
	require.NoError(t, err)

	defer resp.Body.Close()

	var builds []build.Build
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&builds))
	assert.Len(t, builds, 2)
}

func TestImportAndCompare(t *testing.T) {
	t.Parallel()

	configPath, dbPath := importedStore(t)

	table, err := execute(t, "compare", "--config", configPath, "--store", dbPath, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, table, terminal.ReportTitle)
	assert.Contains(t, table, "+500 B")
	assert.NotContains(t, table, "test-helpers")

	markdown, err := execute(t, "compare", "--config", configPath, "--store", dbPath,
		"--format", "markdown", "aaaaaaa1111", "bbbbbbb2222")
	require.NoError(t, err)
	assert.Contains(t, markdown, "| main |")

	csv, err := execute(t, "compare", "--config", configPath, "--store", dbPath, "--format", "csv", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, csv, "bbbbbbb")
	assert.NotContains(t, csv, "aaaaaaa")

	raw, err := execute(t, "compare", "--config", configPath, "--store", dbPath, "--format", "json", "--mode", "consecutive")
	require.NoError(t, err)

	var report comparator.Report
	require.NoError(t, json.Unmarshal([]byte(raw), &report))
	assert.Equal(t, "consecutive", report.Mode)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "main", report.Rows[0].Name)

	_, err = execute(t, "compare", "--config", configPath, "--store", dbPath, "--format", "xml")
	require.ErrorIs(t, err, commands.ErrUnknownFormat)
}

func TestImport_SchemaViolation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeFile(t, dir, "buildtracker.yaml", testConfigYAML)
	bad := writeFile(t, dir, "bad.json", `{"artifacts": []}`)

	_, err := execute(t, "import", "--config", configPath, "--store", filepath.Join(dir, "builds.db"), bad)
	require.ErrorIs(t, err, store.ErrSchemaViolation)
}

func TestCompare_Remote(t *testing.T) {
	t.Parallel()

	configPath, _ := importedStore(t)
	server := httptest.NewServer(commands.NewServerMux(commands.ServerDeps{
		Queries:   queries.FromSource(seededStore(t)),
		Tracer:    noop.NewTracerProvider().Tracer("test"),
		Logger:    observability.NewLogger(observability.DefaultConfig(), io.Discard),
		Dashboard: dashboard.Config{SizeKey: dashboard.DefaultSizeKey},
	}))
	t.Cleanup(server.Close)

	out, err := execute(t, "compare", "--config", configPath, "--api", server.URL, "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "+1000 B")
}

func TestCompare_ShortRevisions(t *testing.T) {
	t.Parallel()

	configPath, dbPath := importedStore(t)

	pair, err := execute(t, "compare", "--config", configPath, "--store", dbPath,
		"--format", "csv", "aaaaaaa", "bbbbbbb")
	require.NoError(t, err)
	assert.Contains(t, pair, "+500 B")

	single, err := execute(t, "compare", "--config", configPath, "--store", dbPath, "--format", "csv", "bbbbbbb")
	require.NoError(t, err)
	assert.Contains(t, single, "bbbbbbb")
	assert.NotContains(t, single, "aaaaaaa")

	_, err = execute(t, "compare", "--config", configPath, "--store", dbPath, "1234abc")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = execute(t, "compare", "--config", configPath, "--store", dbPath, "1234abc", "5678def")
	require.ErrorIs(t, err, commands.ErrNoMatchingBuilds)
}

func TestCompare_List(t *testing.T) {
	t.Parallel()

	configPath, dbPath := importedStore(t)

	out, err := execute(t, "compare", "--config", configPath, "--store", dbPath, "--list", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "aaaaaaa")
	assert.Contains(t, out, "bbbbbbb")
	assert.Contains(t, out, "Total: 2 builds")
	assert.NotContains(t, out, terminal.ReportTitle)
}

func TestCompare_RemoteSingleRevision(t *testing.T) {
	t.Parallel()

	configPath, _ := importedStore(t)
	server := httptest.NewServer(commands.NewServerMux(commands.ServerDeps{
		Queries:   queries.FromSource(seededStore(t)),
		Tracer:    noop.NewTracerProvider().Tracer("test"),
		Logger:    observability.NewLogger(observability.DefaultConfig(), io.Discard),
		Dashboard: dashboard.Config{SizeKey: dashboard.DefaultSizeKey},
	}))
	t.Cleanup(server.Close)

	out, err := execute(t, "compare", "--config", configPath, "--api", server.URL, "--format", "csv", "bbbbbbb")
	require.NoError(t, err)
	assert.Contains(t, out, "bbbbbbb")

	_, err = execute(t, "compare", "--config", configPath, "--api", server.URL, "missing")
	require.ErrorIs(t, err, client.ErrUnexpectedStatus)
}

func TestWatch_Once(t *testing.T) {
	t.Parallel()

	configPath, _ := importedStore(t)
	server := httptest.NewServer(commands.NewServerMux(commands.ServerDeps{
		Queries:   queries.FromSource(seededStore(t)),
		Tracer:    noop.NewTracerProvider().Tracer("test"),
		Logger:    observability.NewLogger(observability.DefaultConfig(), io.Discard),
		Dashboard: dashboard.Config{SizeKey: dashboard.DefaultSizeKey},
	}))
	t.Cleanup(server.Close)

	out, err := execute(t, "watch", "--config", configPath, "--api", server.URL, "--once")
	require.NoError(t, err)
	assert.Contains(t, out, terminal.ReportTitle)
	assert.NotContains(t, out, "\033[2J")
}

func TestWatcher_PollFailureKeepsPreviousResult(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(commands.NewServerMux(commands.ServerDeps{
		Queries:   queries.FromSource(seededStore(t)),
		Tracer:    noop.NewTracerProvider().Tracer("test"),
		Logger:    observability.NewLogger(observability.DefaultConfig(), io.Discard),
		Dashboard: dashboard.Config{SizeKey: dashboard.DefaultSizeKey},
	}))

	var out bytes.Buffer

	watcher := &commands.Watcher{
		Loader:   dashboard.NewLoader(client.New(server.URL)),
		Dash:     dashboard.Config{SizeKey: dashboard.DefaultSizeKey},
		Renderer: terminal.NewRenderer(terminal.Config{Width: terminal.DefaultWidth, NoColor: true}),
		Interval: time.Second,
		Clear:    true,
		Out:      &out,
		ErrOut:   io.Discard,
	}

	require.NoError(t, watcher.Poll(context.Background()))
	assert.Contains(t, out.String(), "\033[2J")
	assert.Contains(t, out.String(), "bbbbbbb")

	server.Close()
	out.Reset()

	require.Error(t, watcher.Poll(context.Background()))
	assert.Empty(t, out.String())

	snapshot := watcher.Loader.Snapshot()
	assert.Equal(t, dashboard.StatusFailed, snapshot.Status)
	assert.Len(t, snapshot.Result.Builds, 2)
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var errOut bytes.Buffer

	watcher := &commands.Watcher{
		Loader:   dashboard.NewLoader(client.New("http://127.0.0.1:1")),
		Renderer: terminal.NewRenderer(terminal.Config{NoColor: true}),
		Interval: time.Hour,
		Out:      io.Discard,
		ErrOut:   &errOut,
	}

	require.NoError(t, watcher.Run(ctx))
	assert.Empty(t, errOut.String())
}
