package reco

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	learnstream "github.com/learnstream/learnstream"
	"github.com/learnstream/learnstream/adapters/memory"
)

type recoEnv struct {
	history  *History
	ingestor *Ingestor
}

func newRecoEnv(t *testing.T) *recoEnv {
	t.Helper()

	history := NewHistory()
	store := learnstream.New(memory.NewAdapter(),
		learnstream.WithProjectors(NewProjection(history)),
	)
	store.RegisterEvents(Events()...)

	return &recoEnv{history: history, ingestor: NewIngestor(store)}
}

func (e *recoEnv) ingest(t *testing.T, userID, lessonID, courseID string, completedAt time.Time) {
	t.Helper()
	_, err := e.ingestor.Ingest(context.Background(), LessonCompleted{
		UserID:      userID,
		LessonID:    lessonID,
		CourseID:    courseID,
		CompletedAt: completedAt,
	})
	require.NoError(t, err)
}

// stubLMS serves canned course and stats responses.
func stubLMS(t *testing.T, courses []Course, stats map[string]*UserStats) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/courses", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": courses})
	})
	mux.HandleFunc("/api/users/", func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/users/"), "/stats")
		userStats, ok := stats[userID]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userStats)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// downLMS always fails.
func downLMS(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newEngine(env *recoEnv, lmsURL string) *Engine {
	return NewEngine(env.history, NewLMSClient(lmsURL), DefaultFallbacks(), nil)
}

func TestEngine_NewLearner(t *testing.T) {
	ctx := context.Background()

	t.Run("recommends the first available course", func(t *testing.T) {
		env := newRecoEnv(t)
		lms := stubLMS(t, []Course{
			{ID: "c1", Title: "Go Basics"},
			{ID: "c2", Title: "Advanced Go"},
		}, nil)

		rec, err := newEngine(env, lms.URL).Recommend(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, "c1", rec.CourseID)
		assert.Equal(t, "Go Basics", rec.Title)
		assert.Equal(t, "Recommended for new learners - first available course from LMS", rec.Reason)
	})

	t.Run("falls back when the LMS has no courses", func(t *testing.T) {
		env := newRecoEnv(t)
		lms := stubLMS(t, nil, nil)

		rec, err := newEngine(env, lms.URL).Recommend(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, "beginner-course-001", rec.CourseID)
		assert.Equal(t, "Introduction to Learning", rec.Title)
		assert.Equal(t, "Recommended for new learners (fallback)", rec.Reason)
	})

	t.Run("falls back when the LMS is down", func(t *testing.T) {
		env := newRecoEnv(t)
		lms := downLMS(t)

		rec, err := newEngine(env, lms.URL).Recommend(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, "beginner-course-001", rec.CourseID)
	})
}

func TestEngine_ExistingLearner(t *testing.T) {
	ctx := context.Background()

	t.Run("suggests the first incomplete course", func(t *testing.T) {
		env := newRecoEnv(t)
		env.ingest(t, "user-1", "l1", "c1", time.Now())

		lms := stubLMS(t, nil, map[string]*UserStats{
			"user-1": {
				UserID: "user-1",
				Courses: []CourseStats{
					{CourseID: "c1", Title: "Go Basics", CompletionPercentage: 33.33},
					{CourseID: "c2", Title: "Advanced Go", CompletionPercentage: 10},
				},
			},
		})

		rec, err := newEngine(env, lms.URL).Recommend(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, "c1", rec.CourseID)
		assert.Equal(t, "Continue your learning - 33.33% complete", rec.Reason)
	})

	t.Run("renders round percentages without trailing zeros", func(t *testing.T) {
		env := newRecoEnv(t)
		env.ingest(t, "user-1", "l1", "c1", time.Now())

		lms := stubLMS(t, nil, map[string]*UserStats{
			"user-1": {
				UserID: "user-1",
				Courses: []CourseStats{
					{CourseID: "c1", Title: "Go Basics", CompletionPercentage: 45.5},
				},
			},
		})

		rec, err := newEngine(env, lms.URL).Recommend(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, "Continue your learning - 45.5% complete", rec.Reason)
	})

	t.Run("all courses complete falls through to a related course", func(t *testing.T) {
		env := newRecoEnv(t)
		env.ingest(t, "user-1", "l1", "c1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		env.ingest(t, "user-1", "l2", "c2", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

		lms := stubLMS(t, nil, map[string]*UserStats{
			"user-1": {
				UserID: "user-1",
				Courses: []CourseStats{
					{CourseID: "c1", Title: "Go Basics", CompletionPercentage: 100},
				},
			},
		})

		rec, err := newEngine(env, lms.URL).Recommend(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, "related-to-c2", rec.CourseID)
		assert.Equal(t, "Advanced Course", rec.Title)
		assert.Equal(t, "Based on your completion of course c2", rec.Reason)
	})

	t.Run("stats failure falls back to the most recent course", func(t *testing.T) {
		env := newRecoEnv(t)
		env.ingest(t, "user-1", "l1", "c1", time.Now())

		lms := downLMS(t)

		rec, err := newEngine(env, lms.URL).Recommend(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, "related-to-c1", rec.CourseID)
	})
}

func TestHistoryProjection(t *testing.T) {
	ctx := context.Background()

	t.Run("ingest inserts a history row", func(t *testing.T) {
		env := newRecoEnv(t)
		completedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		stored, err := env.ingestor.Ingest(ctx, LessonCompleted{
			UserID:      "user-1",
			LessonID:    "l1",
			CourseID:    "c1",
			CompletedAt: completedAt,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, stored.ID)

		rows, err := env.history.ForUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, stored.ID, rows[0].ID)
		assert.Equal(t, "c1", rows[0].CourseID)
		assert.True(t, rows[0].CompletedAt.Equal(completedAt))
	})

	t.Run("history is ordered most recent first", func(t *testing.T) {
		env := newRecoEnv(t)
		env.ingest(t, "user-1", "l1", "c1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		env.ingest(t, "user-1", "l2", "c2", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
		env.ingest(t, "user-1", "l3", "c3", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

		rows, err := env.history.ForUser(ctx, "user-1")

		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"l2", "l3", "l1"}, []string{rows[0].LessonID, rows[1].LessonID, rows[2].LessonID})
	})

	t.Run("users do not see each other's history", func(t *testing.T) {
		env := newRecoEnv(t)
		env.ingest(t, "user-1", "l1", "c1", time.Now())
		env.ingest(t, "user-2", "l2", "c2", time.Now())

		rows, err := env.history.ForUser(ctx, "user-1")

		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "l1", rows[0].LessonID)
	})
}
