package lms

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without file or environment", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		require.Equal(t, ":8080", cfg.ListenAddr)
		require.Equal(t, 5*time.Second, cfg.RelayTimeout)
		require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
		require.Equal(t, "info", cfg.LogLevel)
		require.Empty(t, cfg.DatabaseURL)
		require.Empty(t, cfg.RecoServiceURL)
	})

	t.Run("missing file is tolerated", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
		require.NoError(t, err)
		require.Equal(t, ":8080", cfg.ListenAddr)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lms.yml")
		data := "listen_addr: \":9090\"\nreco_service_url: http://reco:8081\nrelay_timeout: 2s\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, ":9090", cfg.ListenAddr)
		require.Equal(t, "http://reco:8081", cfg.RecoServiceURL)
		require.Equal(t, 2*time.Second, cfg.RelayTimeout)
		require.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lms.yml")
		data := "listen_addr: \":9090\"\nlog_level: warn\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		t.Setenv("LMS_LISTEN_ADDR", ":7070")
		t.Setenv("RECO_SERVICE_URL", "http://reco.internal:8081")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, ":7070", cfg.ListenAddr)
		require.Equal(t, "http://reco.internal:8081", cfg.RecoServiceURL)
		require.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("malformed file fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lms.yml")
		require.NoError(t, os.WriteFile(path, []byte("listen_addr: [broken"), 0o600))

		_, err := LoadConfig(path)
		require.Error(t, err)
	})
}
