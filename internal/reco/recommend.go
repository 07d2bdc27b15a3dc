package reco

import (
	"context"
	"strconv"

	learnstream "github.com/learnstream/learnstream"
)

// Recommendation is one suggested next course.
type Recommendation struct {
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Reason   string `json:"reason"`
}

// Fallbacks are the recommendations served when the LMS is unreachable
// or has nothing useful to offer.
type Fallbacks struct {
	NewLearnerCourseID    string
	NewLearnerCourseTitle string
	PopularCourseID       string
	PopularCourseTitle    string
}

// DefaultFallbacks returns the stock fallback courses.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		NewLearnerCourseID:    "beginner-course-001",
		NewLearnerCourseTitle: "Introduction to Learning",
		PopularCourseID:       "popular-course-001",
		PopularCourseTitle:    "Popular Course",
	}
}

// Engine produces next-course recommendations from the learner history
// and live LMS queries. It is a total function: every user gets a
// recommendation, falling back to configured courses when the LMS is
// unavailable. Upstream failures are logged and swallowed.
type Engine struct {
	history   *History
	lms       *LMSClient
	fallbacks Fallbacks
	logger    learnstream.Logger
}

// NewEngine creates a recommendation engine. A nil logger disables logging.
func NewEngine(history *History, lms *LMSClient, fallbacks Fallbacks, logger learnstream.Logger) *Engine {
	if logger == nil {
		logger = learnstream.NopLogger()
	}
	return &Engine{history: history, lms: lms, fallbacks: fallbacks, logger: logger}
}

// Recommend picks the next course for the user.
func (e *Engine) Recommend(ctx context.Context, userID string) (*Recommendation, error) {
	history, err := e.history.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(history) == 0 {
		return e.recommendForNewLearner(ctx), nil
	}
	return e.recommendForExistingLearner(ctx, userID, history), nil
}

// recommendForNewLearner suggests the first LMS course. Any course beats
// none for a user without stated preferences.
func (e *Engine) recommendForNewLearner(ctx context.Context) *Recommendation {
	courses, err := e.lms.GetCourses(ctx)
	if err != nil {
		e.logger.Error("failed to fetch courses from lms", "error", err)
	} else if len(courses) > 0 {
		return &Recommendation{
			CourseID: courses[0].ID,
			Title:    courses[0].Title,
			Reason:   "Recommended for new learners - first available course from LMS",
		}
	}

	return &Recommendation{
		CourseID: e.fallbacks.NewLearnerCourseID,
		Title:    e.fallbacks.NewLearnerCourseTitle,
		Reason:   "Recommended for new learners (fallback)",
	}
}

func (e *Engine) recommendForExistingLearner(ctx context.Context, userID string, history []*LearnerHistoryRecord) *Recommendation {
	if rec := e.incompleteCourse(ctx, userID); rec != nil {
		return rec
	}

	// History is ordered most recent first.
	recentCourse := history[0].CourseID
	if recentCourse != "" {
		return &Recommendation{
			CourseID: "related-to-" + recentCourse,
			Title:    "Advanced Course",
			Reason:   "Based on your completion of course " + recentCourse,
		}
	}

	return &Recommendation{
		CourseID: e.fallbacks.PopularCourseID,
		Title:    e.fallbacks.PopularCourseTitle,
		Reason:   "Recommended based on popular courses",
	}
}

// incompleteCourse suggests the first started-but-unfinished course so
// learners finish what they started before picking up new courses.
func (e *Engine) incompleteCourse(ctx context.Context, userID string) *Recommendation {
	stats, err := e.lms.GetUserStats(ctx, userID)
	if err != nil {
		e.logger.Error("failed to fetch user stats from lms", "error", err)
		return nil
	}

	for _, course := range stats.Courses {
		if course.CompletionPercentage < 100 {
			return &Recommendation{
				CourseID: course.CourseID,
				Title:    course.Title,
				Reason:   "Continue your learning - " + formatPercent(course.CompletionPercentage) + "% complete",
			}
		}
	}
	return nil
}

// formatPercent renders a percentage without trailing zeros, so 45.50
// reads as 45.5 and 100.00 as 100.
func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
