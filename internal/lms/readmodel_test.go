package lms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCourses(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) *testEnv {
		env := newTestEnv(t)
		env.createCourse(t, "c1", "Advanced Go", "inst-1")
		env.createCourse(t, "c2", "Beginner Go", "inst-2")
		env.createCourse(t, "c3", "Ruby Basics", "inst-1")
		return env
	}

	t.Run("default order is newest first", func(t *testing.T) {
		env := seed(t)

		courses, total, err := env.models.ListCourses(ctx, CourseFilter{
			SortBy: "created_at", SortDesc: true, Page: 1, PerPage: 20,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, courses, 3)
		assert.Equal(t, "c3", courses[0].ID)
	})

	t.Run("filters by title substring", func(t *testing.T) {
		env := seed(t)

		courses, total, err := env.models.ListCourses(ctx, CourseFilter{Title: "go"})

		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, courses, 2)
	})

	t.Run("filters by instructor", func(t *testing.T) {
		env := seed(t)

		_, total, err := env.models.ListCourses(ctx, CourseFilter{InstructorID: "inst-1"})

		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("sorts by title ascending", func(t *testing.T) {
		env := seed(t)

		courses, _, err := env.models.ListCourses(ctx, CourseFilter{SortBy: "title"})

		require.NoError(t, err)
		require.Len(t, courses, 3)
		assert.Equal(t, "Advanced Go", courses[0].Title)
		assert.Equal(t, "Ruby Basics", courses[2].Title)
	})

	t.Run("paginates while reporting the full total", func(t *testing.T) {
		env := seed(t)

		courses, total, err := env.models.ListCourses(ctx, CourseFilter{
			SortBy: "title", Page: 2, PerPage: 2,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, courses, 1)
		assert.Equal(t, "Ruby Basics", courses[0].Title)
	})
}

func TestCompletionPercentage(t *testing.T) {
	ctx := context.Background()

	t.Run("course without lessons is zero", func(t *testing.T) {
		env := newTestEnv(t)
		env.createCourse(t, "c1", "Go Basics", "inst-1")

		pct, err := env.models.CompletionPercentage(ctx, "c1", "user-1")

		require.NoError(t, err)
		assert.Equal(t, 0.0, pct)
	})

	t.Run("one of three lessons rounds to 33.33", func(t *testing.T) {
		env := newTestEnv(t)
		env.createLesson(t, "l1", "c1", "One", 1)
		env.createLesson(t, "l2", "c1", "Two", 2)
		env.createLesson(t, "l3", "c1", "Three", 3)
		env.completeLesson(t, "l1", "user-1")

		pct, err := env.models.CompletionPercentage(ctx, "c1", "user-1")

		require.NoError(t, err)
		assert.Equal(t, 33.33, pct)
	})

	t.Run("duplicate completions count once", func(t *testing.T) {
		env := newTestEnv(t)
		env.createLesson(t, "l1", "c1", "One", 1)
		env.createLesson(t, "l2", "c1", "Two", 2)
		env.completeLesson(t, "l1", "user-1")
		env.completeLesson(t, "l1", "user-1")

		pct, err := env.models.CompletionPercentage(ctx, "c1", "user-1")

		require.NoError(t, err)
		assert.Equal(t, 50.0, pct)
	})

	t.Run("other users do not contribute", func(t *testing.T) {
		env := newTestEnv(t)
		env.createLesson(t, "l1", "c1", "One", 1)
		env.completeLesson(t, "l1", "user-2")

		pct, err := env.models.CompletionPercentage(ctx, "c1", "user-1")

		require.NoError(t, err)
		assert.Equal(t, 0.0, pct)
	})

	t.Run("completions of deleted lessons still count", func(t *testing.T) {
		env := newTestEnv(t)
		env.createLesson(t, "l1", "c1", "One", 1)
		env.createLesson(t, "l2", "c1", "Two", 2)
		env.completeLesson(t, "l1", "user-1")

		_, err := env.bus.Dispatch(ctx, DeleteLesson{LessonID: "l1"})
		require.NoError(t, err)

		// Numerator keeps the orphaned completion, denominator is the
		// one remaining lesson.
		pct, err := env.models.CompletionPercentage(ctx, "c1", "user-1")
		require.NoError(t, err)
		assert.Equal(t, 100.0, pct)
	})
}

func TestStatsForUser(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregates distinct lessons and courses", func(t *testing.T) {
		env := newTestEnv(t)
		env.createCourse(t, "c1", "Go Basics", "inst-1")
		env.createCourse(t, "c2", "Advanced Go", "inst-1")
		env.createLesson(t, "l1", "c1", "One", 1)
		env.createLesson(t, "l2", "c1", "Two", 2)
		env.createLesson(t, "l3", "c2", "Three", 1)

		env.completeLesson(t, "l1", "user-1")
		env.completeLesson(t, "l1", "user-1")
		env.completeLesson(t, "l3", "user-1")

		stats, err := env.models.StatsForUser(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, "user-1", stats.UserID)
		assert.Equal(t, 2, stats.TotalLessonsCompleted)
		assert.Equal(t, 2, stats.TotalCoursesEnrolled)
		require.Len(t, stats.Courses, 2)
		assert.Equal(t, "c1", stats.Courses[0].CourseID)
		assert.Equal(t, 50.0, stats.Courses[0].CompletionPercentage)
		assert.Equal(t, 100.0, stats.Courses[1].CompletionPercentage)
	})

	t.Run("no history yields empty stats", func(t *testing.T) {
		env := newTestEnv(t)

		stats, err := env.models.StatsForUser(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, 0, stats.TotalLessonsCompleted)
		assert.Equal(t, 0, stats.TotalCoursesEnrolled)
		assert.Empty(t, stats.Courses)
	})

	t.Run("deleted courses drop out of the course list", func(t *testing.T) {
		env := newTestEnv(t)
		env.createCourse(t, "c1", "Go Basics", "inst-1")
		env.createLesson(t, "l1", "c1", "One", 1)
		env.completeLesson(t, "l1", "user-1")

		_, err := env.bus.Dispatch(ctx, DeleteCourse{CourseID: "c1"})
		require.NoError(t, err)

		stats, err := env.models.StatsForUser(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalLessonsCompleted)
		assert.Equal(t, 0, stats.TotalCoursesEnrolled)
		assert.Empty(t, stats.Courses)
	})
}
