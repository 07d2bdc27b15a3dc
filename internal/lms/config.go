package lms

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the LMS service configuration. Values come from an
// optional YAML file with environment variable overrides on top.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listen_addr" env:"LMS_LISTEN_ADDR"`

	// DatabaseURL enables the PostgreSQL event store when set. The
	// service runs on the in-memory store without it.
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`

	// RecoServiceURL is the base URL of the recommendation service.
	// Completion events are not relayed when empty.
	RecoServiceURL string `yaml:"reco_service_url" env:"RECO_SERVICE_URL"`

	// RelayTimeout bounds each relay delivery attempt.
	RelayTimeout time.Duration `yaml:"relay_timeout" env:"LMS_RELAY_TIMEOUT"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"LMS_SHUTDOWN_TIMEOUT"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"LMS_LOG_LEVEL"`

	// Tracing enables OpenTelemetry span export to stdout.
	Tracing bool `yaml:"tracing" env:"LMS_TRACING"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8080",
		RelayTimeout:    5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
	}
}

// LoadConfig layers the YAML file at path, when it exists, and then
// environment variables over the defaults. An empty path skips the
// file entirely.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("lms: read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("lms: parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("lms: parse environment: %w", err)
	}
	return cfg, nil
}
