package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/buildtracker/internal/api"
	"github.com/Sumatoshi-tech/buildtracker/internal/dashboard"
	"github.com/Sumatoshi-tech/buildtracker/internal/observability"
	"github.com/Sumatoshi-tech/buildtracker/internal/queries"
)

// ServerDeps holds everything the HTTP routes are built from.
type ServerDeps struct {
	Queries   queries.Queries
	Dashboard dashboard.Config
	Tracer    trace.Tracer
	Logger    *slog.Logger
	Metrics   *observability.REDMetrics
	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler
	// ReadyChecks back /readyz.
	ReadyChecks map[string]observability.ReadyCheck
}

// NewServerMux routes the query API, health probes, metrics and the
// dashboard, wrapped in the tracing middleware.
func NewServerMux(deps ServerDeps) http.Handler {
	mux := http.NewServeMux()

	api.New(deps.Queries,
		api.WithTracer(deps.Tracer),
		api.WithMetrics(deps.Metrics),
		api.WithLogger(deps.Logger),
	).Register(mux)
	mux.Handle("GET /api/", http.NotFoundHandler())

	mux.Handle("GET /healthz", observability.HealthHandler())
	mux.Handle("GET /readyz", observability.ReadyHandler(deps.ReadyChecks))

	if deps.MetricsHandler != nil {
		mux.Handle("GET /metrics", deps.MetricsHandler)
	}

	dashboard.NewHandler(deps.Dashboard, dashboard.NewQueriesFetcher(deps.Queries),
		dashboard.WithTracer(deps.Tracer),
		dashboard.WithMetrics(deps.Metrics),
		dashboard.WithLogger(deps.Logger),
	).Register(mux)

	return observability.HTTPMiddleware(deps.Tracer, deps.Logger, mux)
}

type serveOptions struct {
	addr      string
	storePath string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API and the dashboard",
		Long: `Serve the read-only build query API under /api, the dashboard on every
other path, health probes at /healthz and /readyz and Prometheus metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.storePath, "store", "", "SQLite database path (overrides store.path)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *serveOptions) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dashCfg, err := DashboardConfig(cfg)
	if err != nil {
		return err
	}

	providers, err := observability.Init(ObservabilityConfig(cfg, observability.ModeServe))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	logger := providers.Logger

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	st, err := openStore(cfg, opts.storePath)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, st.Close()) }()

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	unregister, err := observability.RegisterStoreMetrics(providers.Meter, st)
	if err != nil {
		return fmt.Errorf("register store metrics: %w", err)
	}

	defer func() { err = errors.Join(err, unregister()) }()

	handler := NewServerMux(ServerDeps{
		Queries:        queries.FromSource(st),
		Dashboard:      dashCfg,
		Tracer:         providers.Tracer,
		Logger:         logger,
		Metrics:        red,
		MetricsHandler: providers.MetricsHandler,
		ReadyChecks:    map[string]observability.ReadyCheck{"store": st.Ping},
	})

	addr := cfg.Server.Addr
	if opts.addr != "" {
		addr = opts.addr
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutMS) * time.Millisecond,
	}

	return serveUntilDone(ctx, server, logger, time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
}

// serveUntilDone runs server until ctx is canceled, then drains it within timeout.
func serveUntilDone(ctx context.Context, server *http.Server, logger *slog.Logger, timeout time.Duration) error {
	serveErr := make(chan error, 1)

	go func() {
		logger.Info("buildtracker server starting", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("buildtracker server stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return fmt.Errorf("shutdown server: %w", shutdownErr)
	}

	return nil
}
