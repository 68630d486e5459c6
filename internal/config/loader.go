package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = "buildtracker"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for buildtracker settings.
const envPrefix = "BUILDTRACKER"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Default values applied before the config file and environment.
const (
	DefaultServerAddr          = ":8080"
	DefaultReadHeaderTimeoutMS = 5000
	DefaultShutdownTimeoutSec  = 10
	DefaultStorePath           = "buildtracker.db"
	DefaultRecentLimit         = 20
	DefaultLogLevel            = "info"
	DefaultAPIURL              = "http://localhost:8080"
	DefaultSizeKey             = "gzip"
	DefaultMode                = "baseline"
	DefaultPollIntervalSec     = 30
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, buildtracker.yaml is searched in CWD, ./config and /etc/buildtracker.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("config")
		viperCfg.AddConfigPath("/etc/buildtracker")
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("server.addr", DefaultServerAddr)
	viperCfg.SetDefault("server.read_header_timeout_ms", DefaultReadHeaderTimeoutMS)
	viperCfg.SetDefault("server.shutdown_timeout_sec", DefaultShutdownTimeoutSec)

	viperCfg.SetDefault("store.path", DefaultStorePath)
	viperCfg.SetDefault("store.recent_limit", DefaultRecentLimit)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", false)

	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.sample_ratio", 0.0)
	viperCfg.SetDefault("observability.prometheus", true)

	viperCfg.SetDefault("dashboard.api_url", DefaultAPIURL)
	viperCfg.SetDefault("dashboard.artifact_filters", []string{})
	viperCfg.SetDefault("dashboard.toggle_groups", map[string][]string{})
	viperCfg.SetDefault("dashboard.size_key", DefaultSizeKey)
	viperCfg.SetDefault("dashboard.mode", DefaultMode)
	viperCfg.SetDefault("dashboard.poll_interval_sec", DefaultPollIntervalSec)
}
