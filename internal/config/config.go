// Package config loads buildtracker settings from defaults, an optional YAML
// file and BUILDTRACKER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// Config is the top-level configuration struct for buildtracker.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Store         StoreConfig         `mapstructure:"store"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Dashboard     DashboardConfig     `mapstructure:"dashboard"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr                string `mapstructure:"addr"`
	ReadHeaderTimeoutMS int    `mapstructure:"read_header_timeout_ms"`
	ShutdownTimeoutSec  int    `mapstructure:"shutdown_timeout_sec"`
}

// StoreConfig holds the SQLite datastore settings.
type StoreConfig struct {
	Path        string `mapstructure:"path"`
	RecentLimit int    `mapstructure:"recent_limit"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ObservabilityConfig holds OpenTelemetry export settings.
type ObservabilityConfig struct {
	Environment  string  `mapstructure:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Prometheus   bool    `mapstructure:"prometheus"`
}

// DashboardConfig holds the settings shared by the HTML and terminal dashboards.
type DashboardConfig struct {
	// APIURL is the query API base used by watch and remote compare.
	APIURL string `mapstructure:"api_url"`
	// ArtifactFilters are regular expressions; matching artifacts are hidden.
	ArtifactFilters []string `mapstructure:"artifact_filters"`
	// ToggleGroups name sets of artifacts that can be activated together.
	ToggleGroups map[string][]string `mapstructure:"toggle_groups"`
	// SizeKey is the size kind shown by default (gzip, stat, ...).
	SizeKey string `mapstructure:"size_key"`
	// Mode is "baseline" or "consecutive".
	Mode string `mapstructure:"mode"`
	// PollIntervalSec is the refresh period of the watch command.
	PollIntervalSec int `mapstructure:"poll_interval_sec"`
}

var validModes = []string{"baseline", "consecutive"}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidAddr indicates an empty server address.
	ErrInvalidAddr = errors.New("server.addr must not be empty")
	// ErrInvalidTimeout indicates a negative server timeout.
	ErrInvalidTimeout = errors.New("server timeouts must be non-negative")
	// ErrInvalidStorePath indicates an empty datastore path.
	ErrInvalidStorePath = errors.New("store.path must not be empty")
	// ErrInvalidRecentLimit indicates a non-positive recent builds limit.
	ErrInvalidRecentLimit = errors.New("store.recent_limit must be positive")
	// ErrInvalidSampleRatio indicates a sample ratio outside [0, 1].
	ErrInvalidSampleRatio = errors.New("observability.sample_ratio must be between 0 and 1")
	// ErrInvalidArtifactFilter indicates a filter that is not a valid regular expression.
	ErrInvalidArtifactFilter = errors.New("dashboard.artifact_filters entry is not a valid regular expression")
	// ErrInvalidMode indicates an unknown comparison mode.
	ErrInvalidMode = errors.New("dashboard.mode must be baseline or consecutive")
	// ErrInvalidPollInterval indicates a non-positive watch interval.
	ErrInvalidPollInterval = errors.New("dashboard.poll_interval_sec must be positive")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	serverErr := c.validateServer()
	if serverErr != nil {
		return serverErr
	}

	return c.validateDashboard()
}

func (c *Config) validateServer() error {
	if c.Server.Addr == "" {
		return ErrInvalidAddr
	}

	if c.Server.ReadHeaderTimeoutMS < 0 || c.Server.ShutdownTimeoutSec < 0 {
		return ErrInvalidTimeout
	}

	if c.Store.Path == "" {
		return ErrInvalidStorePath
	}

	if c.Store.RecentLimit <= 0 {
		return ErrInvalidRecentLimit
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	return nil
}

func (c *Config) validateDashboard() error {
	for _, pattern := range c.Dashboard.ArtifactFilters {
		_, compileErr := regexp.Compile(pattern)
		if compileErr != nil {
			return fmt.Errorf("%w: %q", ErrInvalidArtifactFilter, pattern)
		}
	}

	if !slices.Contains(validModes, c.Dashboard.Mode) {
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Dashboard.Mode)
	}

	if c.Dashboard.PollIntervalSec <= 0 {
		return ErrInvalidPollInterval
	}

	return nil
}
