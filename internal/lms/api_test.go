package lms

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*testEnv, *httptest.Server) {
	t.Helper()
	env := newTestEnv(t)
	srv := httptest.NewServer(NewServer(env.bus, env.models, nil).Routes())
	t.Cleanup(srv.Close)
	return env, srv
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func TestCoursesAPI(t *testing.T) {
	t.Run("create returns the projected course", func(t *testing.T) {
		_, srv := newTestServer(t)

		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/courses", map[string]string{
			"title":         "Go Basics",
			"description":   "an introduction",
			"instructor_id": "inst-1",
		})

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "Go Basics", body["title"])
		assert.NotEmpty(t, body["id"])
	})

	t.Run("create without title returns 422", func(t *testing.T) {
		_, srv := newTestServer(t)

		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/courses", map[string]string{
			"instructor_id": "inst-1",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("list wraps results in a pagination envelope", func(t *testing.T) {
		env, srv := newTestServer(t)
		for i := 1; i <= 3; i++ {
			env.createCourse(t, fmt.Sprintf("c%d", i), fmt.Sprintf("Course %d", i), "inst-1")
		}

		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/courses?page=1&per_page=2", nil)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		data := body["data"].([]interface{})
		assert.Len(t, data, 2)
		pg := body["pagination"].(map[string]interface{})
		assert.Equal(t, float64(1), pg["page"])
		assert.Equal(t, float64(2), pg["per_page"])
		assert.Equal(t, float64(3), pg["total"])
		assert.Equal(t, float64(2), pg["total_pages"])
	})

	t.Run("per_page is capped", func(t *testing.T) {
		_, srv := newTestServer(t)

		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/courses?per_page=500", nil)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		pg := body["pagination"].(map[string]interface{})
		assert.Equal(t, float64(100), pg["per_page"])
	})

	t.Run("get unknown course returns 404", func(t *testing.T) {
		_, srv := newTestServer(t)

		resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/courses/nope", nil)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("get with user_id reports completion percentage", func(t *testing.T) {
		env, srv := newTestServer(t)
		env.createCourse(t, "c1", "Go Basics", "inst-1")
		env.createLesson(t, "l1", "c1", "One", 1)
		env.createLesson(t, "l2", "c1", "Two", 2)
		env.completeLesson(t, "l1", "user-1")

		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/courses/c1?user_id=user-1", nil)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(50), body["completion_percentage"])
	})

	t.Run("get without user_id has a null percentage", func(t *testing.T) {
		env, srv := newTestServer(t)
		env.createCourse(t, "c1", "Go Basics", "inst-1")

		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/courses/c1", nil)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		val, present := body["completion_percentage"]
		assert.True(t, present)
		assert.Nil(t, val)
	})

	t.Run("update and delete", func(t *testing.T) {
		env, srv := newTestServer(t)
		env.createCourse(t, "c1", "Go Basics", "inst-1")

		resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/courses/c1", map[string]string{
			"title": "Go Fundamentals",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Go Fundamentals", body["title"])

		resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/courses/c1", nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/courses/c1", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestLessonsAPI(t *testing.T) {
	t.Run("list filters by course", func(t *testing.T) {
		env, srv := newTestServer(t)
		env.createLesson(t, "l1", "c1", "One", 2)
		env.createLesson(t, "l2", "c1", "Two", 1)
		env.createLesson(t, "l3", "c2", "Other", 1)

		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/lessons?course_id=c1", nil)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		data := body["data"].([]interface{})
		require.Len(t, data, 2)
		first := data[0].(map[string]interface{})
		assert.Equal(t, "l2", first["id"])
	})

	t.Run("complete requires a user", func(t *testing.T) {
		env, srv := newTestServer(t)
		env.createLesson(t, "l1", "c1", "One", 1)

		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/lessons/l1/complete", nil)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "user_id is required", body["error"])
	})

	t.Run("complete accepts the user header", func(t *testing.T) {
		env, srv := newTestServer(t)
		env.createLesson(t, "l1", "c1", "One", 1)

		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/lessons/l1/complete", nil)
		require.NoError(t, err)
		req.Header.Set("X-User-Id", "user-1")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, env.notifier.events, 1)
		assert.Equal(t, "user-1", env.notifier.events[0].UserID)
	})

	t.Run("complete accepts the query parameter", func(t *testing.T) {
		env, srv := newTestServer(t)
		env.createLesson(t, "l1", "c1", "One", 1)

		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/lessons/l1/complete?user_id=user-1", nil)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Lesson completed successfully", body["message"])
	})

	t.Run("completing an unknown lesson returns 404", func(t *testing.T) {
		_, srv := newTestServer(t)

		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/lessons/nope/complete?user_id=user-1", nil)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUserStatsAPI(t *testing.T) {
	t.Run("returns the aggregated stats", func(t *testing.T) {
		env, srv := newTestServer(t)
		env.createCourse(t, "c1", "Go Basics", "inst-1")
		env.createLesson(t, "l1", "c1", "One", 1)
		env.createLesson(t, "l2", "c1", "Two", 2)
		env.completeLesson(t, "l1", "user-1")

		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/users/user-1/stats", nil)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "user-1", body["user_id"])
		assert.Equal(t, float64(1), body["total_lessons_completed"])
		assert.Equal(t, float64(1), body["total_courses_enrolled"])
		courses := body["courses"].([]interface{})
		require.Len(t, courses, 1)
		course := courses[0].(map[string]interface{})
		assert.Equal(t, "c1", course["course_id"])
		assert.Equal(t, float64(50), course["completion_percentage"])
	})
}
