package reco

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPITest(t *testing.T, lmsURL string) (*recoEnv, *httptest.Server) {
	t.Helper()

	env := newRecoEnv(t)
	engine := newEngine(env, lmsURL)
	srv := httptest.NewServer(NewServer(env.ingestor, engine, nil).Routes())
	t.Cleanup(srv.Close)
	return env, srv
}

func postEvent(t *testing.T, url string, event map[string]interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]interface{}{"event": event}))

	resp, err := http.Post(url+"/api/events/lesson_completed", "application/json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestEventsEndpoint(t *testing.T) {
	t.Run("valid event is stored and acknowledged", func(t *testing.T) {
		env, srv := newAPITest(t, "http://lms.invalid")

		resp, body := postEvent(t, srv.URL, map[string]interface{}{
			"user_id":      "user-1",
			"lesson_id":    "l1",
			"course_id":    "c1",
			"completed_at": "2026-03-01T12:00:00Z",
		})

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "Event received and processed", body["message"])
		assert.NotEmpty(t, body["event_id"])
		assert.Equal(t, "user-1", body["user_id"])

		rows, err := env.history.ForUser(t.Context(), "user-1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, body["event_id"], rows[0].ID)
		assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), rows[0].CompletedAt.UTC())
	})

	t.Run("missing ids are rejected", func(t *testing.T) {
		_, srv := newAPITest(t, "http://lms.invalid")

		for _, event := range []map[string]interface{}{
			{"lesson_id": "l1", "course_id": "c1"},
			{"user_id": "user-1", "course_id": "c1"},
			{"user_id": "user-1", "lesson_id": "l1"},
		} {
			resp, body := postEvent(t, srv.URL, event)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		}
	})

	t.Run("malformed completed_at is rejected", func(t *testing.T) {
		_, srv := newAPITest(t, "http://lms.invalid")

		resp, _ := postEvent(t, srv.URL, map[string]interface{}{
			"user_id":      "user-1",
			"lesson_id":    "l1",
			"course_id":    "c1",
			"completed_at": "not a timestamp",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("absent completed_at defaults to receipt time", func(t *testing.T) {
		env, srv := newAPITest(t, "http://lms.invalid")
		before := time.Now().Add(-time.Second)

		resp, _ := postEvent(t, srv.URL, map[string]interface{}{
			"user_id":   "user-1",
			"lesson_id": "l1",
			"course_id": "c1",
		})

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		rows, err := env.history.ForUser(t.Context(), "user-1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].CompletedAt.After(before))
	})
}

func TestNextCourseEndpoint(t *testing.T) {
	t.Run("returns the recommendation envelope", func(t *testing.T) {
		lms := stubLMS(t, []Course{{ID: "c1", Title: "Go Basics"}}, nil)
		_, srv := newAPITest(t, lms.URL)

		resp, err := http.Get(srv.URL + "/api/users/user-1/next_course")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "user-1", body["user_id"])
		course := body["recommended_course"].(map[string]interface{})
		assert.Equal(t, "c1", course["course_id"])
		assert.Equal(t, "Go Basics", course["title"])
		assert.NotEmpty(t, course["reason"])
	})

	t.Run("recommendation survives an unreachable LMS", func(t *testing.T) {
		_, srv := newAPITest(t, "http://lms.invalid")

		resp, err := http.Get(srv.URL + "/api/users/user-1/next_course")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		course := body["recommended_course"].(map[string]interface{})
		assert.Equal(t, "beginner-course-001", course["course_id"])
	})
}
