// Package commands implements the buildtracker CLI commands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/buildtracker/internal/config"
	"github.com/Sumatoshi-tech/buildtracker/internal/dashboard"
	"github.com/Sumatoshi-tech/buildtracker/internal/observability"
	"github.com/Sumatoshi-tech/buildtracker/internal/store"
	"github.com/Sumatoshi-tech/buildtracker/pkg/comparator"
	"github.com/Sumatoshi-tech/buildtracker/pkg/version"
)

// ConfigFlag names the persistent flag holding an explicit config file path.
const ConfigFlag = "config"

// loadConfig reads the configuration selected by the --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := ""

	if flag := cmd.Flag(ConfigFlag); flag != nil {
		path = flag.Value.String()
	}

	return config.LoadConfig(path)
}

// ObservabilityConfig maps the application settings onto the telemetry setup
// for one launch mode.
func ObservabilityConfig(cfg *config.Config, mode observability.AppMode) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Observability.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.PrometheusEnabled = cfg.Observability.Prometheus && mode == observability.ModeServe
	obsCfg.LogLevel = observability.ParseLogLevel(cfg.Logging.Level)
	obsCfg.LogJSON = cfg.Logging.JSON
	obsCfg.ShutdownTimeoutSec = cfg.Server.ShutdownTimeoutSec

	return obsCfg
}

// DashboardConfig compiles the dashboard settings.
func DashboardConfig(cfg *config.Config) (dashboard.Config, error) {
	dashCfg, err := dashboard.NewConfig(
		cfg.Dashboard.ArtifactFilters,
		cfg.Dashboard.ToggleGroups,
		cfg.Dashboard.SizeKey,
		comparator.ParseMode(cfg.Dashboard.Mode),
	)
	if err != nil {
		return dashboard.Config{}, fmt.Errorf("dashboard config: %w", err)
	}

	return dashCfg, nil
}

func openStore(cfg *config.Config, path string) (*store.Store, error) {
	if path == "" {
		path = cfg.Store.Path
	}

	st, err := store.Open(path, store.WithRecentLimit(cfg.Store.RecentLimit))
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	return st, nil
}
