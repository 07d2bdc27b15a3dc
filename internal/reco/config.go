package reco

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the recommendation service configuration. Values come
// from an optional YAML file with environment variable overrides on top.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listen_addr" env:"RECO_LISTEN_ADDR"`

	// DatabaseURL enables the PostgreSQL event store when set. The
	// service runs on the in-memory store without it.
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`

	// LMSServiceURL is the base URL of the upstream LMS.
	LMSServiceURL string `yaml:"lms_service_url" env:"LMS_SERVICE_URL"`

	// Fallback courses served when the LMS cannot be queried.
	FallbackNewLearnerCourseID    string `yaml:"fallback_new_learner_course_id" env:"FALLBACK_NEW_LEARNER_COURSE_ID"`
	FallbackNewLearnerCourseTitle string `yaml:"fallback_new_learner_course_title" env:"FALLBACK_NEW_LEARNER_COURSE_TITLE"`
	FallbackPopularCourseID       string `yaml:"fallback_popular_course_id" env:"FALLBACK_POPULAR_COURSE_ID"`
	FallbackPopularCourseTitle    string `yaml:"fallback_popular_course_title" env:"FALLBACK_POPULAR_COURSE_TITLE"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"RECO_SHUTDOWN_TIMEOUT"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"RECO_LOG_LEVEL"`

	// Tracing enables OpenTelemetry span export to stdout.
	Tracing bool `yaml:"tracing" env:"RECO_TRACING"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	fallbacks := DefaultFallbacks()
	return &Config{
		ListenAddr:                    ":8081",
		LMSServiceURL:                 "http://lms:8080",
		FallbackNewLearnerCourseID:    fallbacks.NewLearnerCourseID,
		FallbackNewLearnerCourseTitle: fallbacks.NewLearnerCourseTitle,
		FallbackPopularCourseID:       fallbacks.PopularCourseID,
		FallbackPopularCourseTitle:    fallbacks.PopularCourseTitle,
		ShutdownTimeout:               10 * time.Second,
		LogLevel:                      "info",
	}
}

// Fallbacks converts the configured fallback courses for the engine.
func (c *Config) Fallbacks() Fallbacks {
	return Fallbacks{
		NewLearnerCourseID:    c.FallbackNewLearnerCourseID,
		NewLearnerCourseTitle: c.FallbackNewLearnerCourseTitle,
		PopularCourseID:       c.FallbackPopularCourseID,
		PopularCourseTitle:    c.FallbackPopularCourseTitle,
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
			return nil, fmt.Errorf("reco: read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("reco: parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("reco: parse environment: %w", err)
	}
	return cfg, nil
}
