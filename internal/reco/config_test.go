package reco

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults carry the built-in fallback courses", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		require.Equal(t, ":8081", cfg.ListenAddr)
		require.Equal(t, "http://lms:8080", cfg.LMSServiceURL)
		require.Equal(t, DefaultFallbacks(), cfg.Fallbacks())
	})

	t.Run("environment overrides fallback courses", func(t *testing.T) {
		t.Setenv("FALLBACK_NEW_LEARNER_COURSE_ID", "intro-101")
		t.Setenv("FALLBACK_NEW_LEARNER_COURSE_TITLE", "Getting Started")
		t.Setenv("LMS_SERVICE_URL", "http://lms.internal:8080")

		cfg, err := LoadConfig("")
		require.NoError(t, err)
		require.Equal(t, "http://lms.internal:8080", cfg.LMSServiceURL)

		fb := cfg.Fallbacks()
		require.Equal(t, "intro-101", fb.NewLearnerCourseID)
		require.Equal(t, "Getting Started", fb.NewLearnerCourseTitle)
		require.Equal(t, DefaultFallbacks().PopularCourseID, fb.PopularCourseID)
	})

	t.Run("file values survive unset environment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reco.yml")
		data := "listen_addr: \":7081\"\nfallback_popular_course_id: trending-001\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, ":7081", cfg.ListenAddr)
		require.Equal(t, "trending-001", cfg.Fallbacks().PopularCourseID)
	})
}
