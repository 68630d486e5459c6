package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/buildtracker/internal/client"
	"github.com/Sumatoshi-tech/buildtracker/internal/dashboard"
	"github.com/Sumatoshi-tech/buildtracker/internal/observability"
	"github.com/Sumatoshi-tech/buildtracker/internal/terminal"
	"github.com/Sumatoshi-tech/buildtracker/pkg/comparator"
)

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\033[H\033[2J"

type watchOptions struct {
	apiURL   string
	limit    string
	interval int
	once     bool
}

// Watcher polls the query API and redraws the comparison of the most recent
// builds after every successful fetch.
type Watcher struct {
	Loader   *dashboard.Loader
	Query    client.Query
	Dash     dashboard.Config
	Renderer *terminal.Renderer
	Interval time.Duration
	Clear    bool
	Out      io.Writer
	ErrOut   io.Writer
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the query API and redraw the comparison",
		Long: `Poll a running buildtracker server and redraw the comparison of the most
recent builds. A failed poll keeps the last comparison on screen.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.apiURL, "api", "", "query API base URL (overrides dashboard.api_url)")
	cmd.Flags().StringVar(&opts.limit, "limit", "", "number of recent builds to compare")
	cmd.Flags().IntVar(&opts.interval, "interval", 0, "poll interval in seconds (overrides dashboard.poll_interval_sec)")
	cmd.Flags().BoolVar(&opts.once, "once", false, "fetch and draw once, then exit")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts *watchOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dashCfg, err := DashboardConfig(cfg)
	if err != nil {
		return err
	}

	providers, err := observability.Init(ObservabilityConfig(cfg, observability.ModeWatch))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	apiURL := cfg.Dashboard.APIURL
	if opts.apiURL != "" {
		apiURL = opts.apiURL
	}

	interval := cfg.Dashboard.PollIntervalSec
	if opts.interval > 0 {
		interval = opts.interval
	}

	watcher := &Watcher{
		Loader:   dashboard.NewLoader(client.New(apiURL)),
		Query:    client.Query{Limit: opts.limit},
		Dash:     dashCfg,
		Renderer: terminal.NewRenderer(terminal.NewConfig()),
		Interval: time.Duration(interval) * time.Second,
		Clear:    !opts.once,
		Out:      cmd.OutOrStdout(),
		ErrOut:   cmd.ErrOrStderr(),
	}

	if opts.once {
		return watcher.Poll(ctx)
	}

	return watcher.Run(ctx)
}

// Run polls until ctx is canceled. Poll failures are reported and retried
// on the next tick.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		pollErr := w.Poll(ctx)
		if pollErr != nil && ctx.Err() == nil {
			fmt.Fprintf(w.ErrOut, "poll failed: %v\n", pollErr)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one fetch and draws the comparison when it succeeds.
func (w *Watcher) Poll(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, max(w.Interval, time.Second))
	defer cancel()

	snapshot, err := w.Loader.Load(fetchCtx, w.Query)
	if errors.Is(err, dashboard.ErrStale) {
		return nil
	}

	if err != nil {
		return err
	}

	cmp := comparator.New(snapshot.Result.Builds,
		comparator.WithArtifactFilters(w.Dash.ArtifactFilters),
		comparator.WithMode(w.Dash.Mode),
	)

	if w.Clear {
		fmt.Fprint(w.Out, clearScreen)
	}

	return w.Renderer.RenderComparison(w.Out, cmp, w.Dash.SizeKey)
}
