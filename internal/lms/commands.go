package lms

import (
	learnstream "github.com/learnstream/learnstream"
)

// CreateCourse creates a new course aggregate.
type CreateCourse struct {
	learnstream.CommandBase

	CourseID     string `json:"course_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	InstructorID string `json:"instructor_id"`
}

func (c CreateCourse) CommandType() string { return "CreateCourse" }
func (c CreateCourse) AggregateID() string { return c.CourseID }

// Validate checks required fields.
func (c CreateCourse) Validate() error {
	if c.CourseID == "" {
		return learnstream.NewValidationError(c.CommandType(), "course_id", "course ID is required")
	}
	if c.Title == "" {
		return learnstream.NewValidationError(c.CommandType(), "title", "title is required")
	}
	if c.InstructorID == "" {
		return learnstream.NewValidationError(c.CommandType(), "instructor_id", "instructor ID is required")
	}
	return nil
}

// UpdateCourse partially updates a course. Nil fields are left unchanged.
type UpdateCourse struct {
	learnstream.CommandBase

	CourseID    string  `json:"course_id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (c UpdateCourse) CommandType() string { return "UpdateCourse" }
func (c UpdateCourse) AggregateID() string { return c.CourseID }

// Validate checks required fields.
func (c UpdateCourse) Validate() error {
	if c.CourseID == "" {
		return learnstream.NewValidationError(c.CommandType(), "course_id", "course ID is required")
	}
	return nil
}

// DeleteCourse deletes a course. Its lessons and completions are kept.
type DeleteCourse struct {
	learnstream.CommandBase

	CourseID string `json:"course_id"`
}

func (c DeleteCourse) CommandType() string { return "DeleteCourse" }
func (c DeleteCourse) AggregateID() string { return c.CourseID }

// Validate checks required fields.
func (c DeleteCourse) Validate() error {
	if c.CourseID == "" {
		return learnstream.NewValidationError(c.CommandType(), "course_id", "course ID is required")
	}
	return nil
}

// CreateLesson creates a new lesson within a course.
type CreateLesson struct {
	learnstream.CommandBase

	LessonID string `json:"lesson_id"`
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Order    int    `json:"order"`
}

func (c CreateLesson) CommandType() string { return "CreateLesson" }
func (c CreateLesson) AggregateID() string { return c.LessonID }

// Validate checks required fields.
func (c CreateLesson) Validate() error {
	if c.LessonID == "" {
		return learnstream.NewValidationError(c.CommandType(), "lesson_id", "lesson ID is required")
	}
	if c.CourseID == "" {
		return learnstream.NewValidationError(c.CommandType(), "course_id", "course ID is required")
	}
	if c.Title == "" {
		return learnstream.NewValidationError(c.CommandType(), "title", "title is required")
	}
	if c.Order < 0 {
		return learnstream.NewValidationError(c.CommandType(), "order", "order must not be negative")
	}
	return nil
}

// UpdateLesson partially updates a lesson.
type UpdateLesson struct {
	learnstream.CommandBase

	LessonID string  `json:"lesson_id"`
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	Order    *int    `json:"order,omitempty"`
}

func (c UpdateLesson) CommandType() string { return "UpdateLesson" }
func (c UpdateLesson) AggregateID() string { return c.LessonID }

// Validate checks required fields.
func (c UpdateLesson) Validate() error {
	if c.LessonID == "" {
		return learnstream.NewValidationError(c.CommandType(), "lesson_id", "lesson ID is required")
	}
	if c.Order != nil && *c.Order < 0 {
		return learnstream.NewValidationError(c.CommandType(), "order", "order must not be negative")
	}
	return nil
}

// DeleteLesson deletes a lesson. Prior completions are kept.
type DeleteLesson struct {
	learnstream.CommandBase

	LessonID string `json:"lesson_id"`
}

func (c DeleteLesson) CommandType() string { return "DeleteLesson" }
func (c DeleteLesson) AggregateID() string { return c.LessonID }

// Validate checks required fields.
func (c DeleteLesson) Validate() error {
	if c.LessonID == "" {
		return learnstream.NewValidationError(c.CommandType(), "lesson_id", "lesson ID is required")
	}
	return nil
}

// CompleteLesson records that a user completed a lesson.
type CompleteLesson struct {
	learnstream.CommandBase

	LessonID string `json:"lesson_id"`
	UserID   string `json:"user_id"`
}

func (c CompleteLesson) CommandType() string { return "CompleteLesson" }
func (c CompleteLesson) AggregateID() string { return c.LessonID }

// Validate checks required fields.
func (c CompleteLesson) Validate() error {
	if c.LessonID == "" {
		return learnstream.NewValidationError(c.CommandType(), "lesson_id", "lesson ID is required")
	}
	if c.UserID == "" {
		return learnstream.NewValidationError(c.CommandType(), "user_id", "user ID is required")
	}
	return nil
}
