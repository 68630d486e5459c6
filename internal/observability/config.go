// Package observability provides OpenTelemetry tracing, RED metrics, a
// Prometheus scrape endpoint and trace-aware structured logging for the
// buildtracker server and CLI.
package observability

import "log/slog"

// AppMode identifies how the binary was launched.
type AppMode string

const (
	// ModeCLI is one-shot command execution (compare, import).
	ModeCLI AppMode = "cli"
	// ModeServe is the HTTP API and dashboard server.
	ModeServe AppMode = "serve"
	// ModeWatch is the polling terminal dashboard.
	ModeWatch AppMode = "watch"
)

const (
	defaultServiceName        = "buildtracker"
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "production", "dev").
	Environment string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables export.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporters.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP connection.
	OTLPInsecure bool

	// SampleRatio is the trace sampling ratio; zero samples every root span.
	SampleRatio float64

	// PrometheusEnabled exposes metrics through MetricsHandler.
	PrometheusEnabled bool

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON switches log output from text to JSON.
	LogJSON bool

	// ShutdownTimeoutSec bounds the flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// ParseLogLevel maps a configuration level name to a slog level, defaulting to info.
func ParseLogLevel(name string) slog.Level {
	var level slog.Level

	err := level.UnmarshalText([]byte(name))
	if err != nil {
		return slog.LevelInfo
	}

	return level
}
