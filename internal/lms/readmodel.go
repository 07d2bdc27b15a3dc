package lms

import (
	"context"
	"errors"
	"math"
	"time"

	learnstream "github.com/learnstream/learnstream"
)

// CourseRecord is the read model row for a course.
type CourseRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	InstructorID string    `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LessonRecord is the read model row for a lesson.
type LessonRecord struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompletionRecord is one row per LessonCompleted event. Duplicates are
// kept; distinct-lesson counting happens at query time. Rows survive the
// deletion of their lesson or course.
type CompletionRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	LessonID    string    `json:"lesson_id"`
	CourseID    string    `json:"course_id"`
	CompletedAt time.Time `json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// CourseStats is one per-course entry in a user's stats.
type CourseStats struct {
	CourseID             string  `json:"course_id"`
	Title                string  `json:"title"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// UserStats aggregates a user's completion activity.
type UserStats struct {
	UserID                string        `json:"user_id"`
	TotalLessonsCompleted int           `json:"total_lessons_completed"`
	TotalCoursesEnrolled  int           `json:"total_courses_enrolled"`
	Courses               []CourseStats `json:"courses"`
}

// ReadModels bundles the LMS read model repositories and their queries.
type ReadModels struct {
	Courses     learnstream.ReadModelRepository[CourseRecord]
	Lessons     learnstream.ReadModelRepository[LessonRecord]
	Completions learnstream.ReadModelRepository[CompletionRecord]
}

// NewReadModels creates in-memory read model repositories.
func NewReadModels() *ReadModels {
	return &ReadModels{
		Courses:     learnstream.NewInMemoryRepository(func(c *CourseRecord) string { return c.ID }),
		Lessons:     learnstream.NewInMemoryRepository(func(l *LessonRecord) string { return l.ID }),
		Completions: learnstream.NewInMemoryRepository(func(c *CompletionRecord) string { return c.ID }),
	}
}

// CourseFilter narrows and orders course listings.
type CourseFilter struct {
	Title        string // substring match
	InstructorID string // exact match
	SortBy       string // title | created_at | instructor_id
	SortDesc     bool
	Page         int
	PerPage      int
}

// ListCourses returns a page of courses plus the total match count.
func (r *ReadModels) ListCourses(ctx context.Context, f CourseFilter) ([]*CourseRecord, int64, error) {
	q := learnstream.NewQuery()
	if f.Title != "" {
		q.Where("title", learnstream.FilterOpLike, f.Title)
	}
	if f.InstructorID != "" {
		q.Where("instructor_id", learnstream.FilterOpEq, f.InstructorID)
	}

	total, err := r.Courses.Count(ctx, q.Build())
	if err != nil {
		return nil, 0, err
	}

	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	if f.SortDesc {
		q.OrderByDesc(sortBy)
	} else {
		q.OrderByAsc(sortBy)
	}

	if f.Page > 0 && f.PerPage > 0 {
		q.WithPagination(f.Page, f.PerPage)
	}

	courses, err := r.Courses.Find(ctx, q.Build())
	if err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}

// ListLessons returns lessons, optionally restricted to one course,
// ordered by their position then creation time.
func (r *ReadModels) ListLessons(ctx context.Context, courseID string) ([]*LessonRecord, error) {
	q := learnstream.NewQuery()
	if courseID != "" {
		q.Where("course_id", learnstream.FilterOpEq, courseID)
	}
	q.OrderByAsc("order").OrderByAsc("created_at")

	return r.Lessons.Find(ctx, q.Build())
}

// CompletionPercentage computes the share of a course's lessons the user
// has completed, rounded to two decimals. A course with no lessons is 0.
// Completions of since-deleted lessons still count toward the numerator.
func (r *ReadModels) CompletionPercentage(ctx context.Context, courseID, userID string) (float64, error) {
	lessonCount, err := r.Lessons.Count(ctx, learnstream.NewQuery().
		Where("course_id", learnstream.FilterOpEq, courseID).
		Build())
	if err != nil {
		return 0, err
	}
	if lessonCount == 0 {
		return 0, nil
	}

	completions, err := r.Completions.Find(ctx, learnstream.NewQuery().
		Where("course_id", learnstream.FilterOpEq, courseID).
		Where("user_id", learnstream.FilterOpEq, userID).
		Build())
	if err != nil {
		return 0, err
	}

	distinct := make(map[string]struct{}, len(completions))
	for _, c := range completions {
		distinct[c.LessonID] = struct{}{}
	}

	pct := float64(len(distinct)) / float64(lessonCount) * 100
	return math.Round(pct*100) / 100, nil
}

// StatsForUser aggregates the user's completions into per-course stats.
// Courses whose read model row was deleted are left out of the course
// list, while their lessons still count toward the completion total.
func (r *ReadModels) StatsForUser(ctx context.Context, userID string) (*UserStats, error) {
	// Ordered by first completion so the course list is stable.
	completions, err := r.Completions.Find(ctx, learnstream.NewQuery().
		Where("user_id", learnstream.FilterOpEq, userID).
		OrderByAsc("created_at").
		Build())
	if err != nil {
		return nil, err
	}

	distinctLessons := make(map[string]struct{})
	courseIDs := make(map[string]struct{})
	var courseOrder []string
	for _, c := range completions {
		distinctLessons[c.LessonID] = struct{}{}
		if _, seen := courseIDs[c.CourseID]; !seen {
			courseIDs[c.CourseID] = struct{}{}
			courseOrder = append(courseOrder, c.CourseID)
		}
	}

	stats := &UserStats{
		UserID:                userID,
		TotalLessonsCompleted: len(distinctLessons),
		Courses:               make([]CourseStats, 0, len(courseOrder)),
	}

	for _, courseID := range courseOrder {
		course, err := r.Courses.Get(ctx, courseID)
		if errors.Is(err, learnstream.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		pct, err := r.CompletionPercentage(ctx, courseID, userID)
		if err != nil {
			return nil, err
		}

		stats.Courses = append(stats.Courses, CourseStats{
			CourseID:             course.ID,
			Title:                course.Title,
			CompletionPercentage: pct,
		})
	}

	stats.TotalCoursesEnrolled = len(stats.Courses)
	return stats, nil
}
