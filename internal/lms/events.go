// Package lms implements the learning management service: the system of
// record for courses, lessons, and lesson completions. State changes flow
// through event-sourced aggregates; read models are maintained by a
// synchronous projector and served over HTTP.
package lms

import (
	"time"
)

// Aggregate type names. These form the stream ID prefix.
const (
	CourseAggregateType = "Course"
	LessonAggregateType = "Lesson"
)

// CourseCreated records the creation of a course.
type CourseCreated struct {
	CourseID     string    `json:"course_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	InstructorID string    `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// CourseUpdated records a partial update to a course. Nil fields were not
// part of the update and leave prior state untouched. A present empty
// string overwrites; the write side does not distinguish cleared from
// omitted beyond pointer presence.
type CourseUpdated struct {
	CourseID    string    `json:"course_id"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CourseDeleted marks a course as deleted. Terminal: no further events
// are accepted on the stream.
type CourseDeleted struct {
	CourseID  string    `json:"course_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// LessonCreated records the creation of a lesson within a course.
type LessonCreated struct {
	LessonID  string    `json:"lesson_id"`
	CourseID  string    `json:"course_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

// LessonUpdated records a partial update to a lesson. Same nil-is-absent
// convention as CourseUpdated.
type LessonUpdated struct {
	LessonID  string    `json:"lesson_id"`
	Title     *string   `json:"title,omitempty"`
	Content   *string   `json:"content,omitempty"`
	Order     *int      `json:"order,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LessonDeleted marks a lesson as deleted. Completions already recorded
// for the lesson are kept.
type LessonDeleted struct {
	LessonID  string    `json:"lesson_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// LessonCompleted records that a user completed a lesson. The same user
// may complete the same lesson repeatedly; every completion is an event
// and deduplication happens at query time only.
type LessonCompleted struct {
	UserID      string    `json:"user_id"`
	LessonID    string    `json:"lesson_id"`
	CourseID    string    `json:"course_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Events returns one value of every domain event type for serializer
// registration.
func Events() []interface{} {
	return []interface{}{
		CourseCreated{},
		CourseUpdated{},
		CourseDeleted{},
		LessonCreated{},
		LessonUpdated{},
		LessonDeleted{},
		LessonCompleted{},
	}
}
