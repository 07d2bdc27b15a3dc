package reco

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	learnstream "github.com/learnstream/learnstream"
)

// DefaultLMSTimeout bounds each request to the LMS service.
const DefaultLMSTimeout = 5 * time.Second

// Course is the course shape served by the LMS API.
type Course struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	InstructorID         string   `json:"instructor_id"`
	CompletionPercentage *float64 `json:"completion_percentage"`
}

// CourseStats is one per-course entry of a user's LMS stats.
type CourseStats struct {
	CourseID             string  `json:"course_id"`
	Title                string  `json:"title"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// UserStats is the LMS stats response for one user.
type UserStats struct {
	UserID                string        `json:"user_id"`
	TotalLessonsCompleted int           `json:"total_lessons_completed"`
	TotalCoursesEnrolled  int           `json:"total_courses_enrolled"`
	Courses               []CourseStats `json:"courses"`
}

// LMSClient queries the upstream LMS HTTP API.
type LMSClient struct {
	baseURL string
	client  *http.Client
	logger  learnstream.Logger
}

// LMSClientOption configures the client.
type LMSClientOption func(*LMSClient)

// WithLMSHTTPClient replaces the underlying HTTP client.
func WithLMSHTTPClient(c *http.Client) LMSClientOption {
	return func(l *LMSClient) {
		l.client = c
	}
}

// WithLMSLogger sets the logger.
func WithLMSLogger(logger learnstream.Logger) LMSClientOption {
	return func(l *LMSClient) {
		l.logger = logger
	}
}

// NewLMSClient creates a client for the LMS at baseURL.
func NewLMSClient(baseURL string, opts ...LMSClientOption) *LMSClient {
	c := &LMSClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultLMSTimeout},
		logger:  learnstream.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type courseListResponse struct {
	Data []Course `json:"data"`
}

// GetCourses lists the LMS courses, first page in the LMS default order.
func (l *LMSClient) GetCourses(ctx context.Context) ([]Course, error) {
	var resp courseListResponse
	if err := l.get(ctx, "/api/courses", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetCourse fetches one course. A non-empty userID adds the user's
// completion percentage to the response.
func (l *LMSClient) GetCourse(ctx context.Context, courseID, userID string) (*Course, error) {
	path := "/api/courses/" + url.PathEscape(courseID)
	if userID != "" {
		path += "?user_id=" + url.QueryEscape(userID)
	}

	var course Course
	if err := l.get(ctx, path, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// GetUserStats fetches a user's completion stats.
func (l *LMSClient) GetUserStats(ctx context.Context, userID string) (*UserStats, error) {
	var stats UserStats
	if err := l.get(ctx, "/api/users/"+url.PathEscape(userID)+"/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (l *LMSClient) get(ctx context.Context, path string, dst interface{}) error {
	reqURL := l.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return learnstream.NewUpstreamError("lms", reqURL, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return learnstream.NewUpstreamError("lms", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return learnstream.NewUpstreamError("lms", reqURL,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return learnstream.NewUpstreamError("lms", reqURL, err)
	}
	return nil
}
