package lms

import (
	"fmt"
	"time"

	learnstream "github.com/learnstream/learnstream"
)

// Lesson is the aggregate for a lesson. It belongs to exactly one course,
// fixed at creation. Completions are repeatable events on the lesson
// stream; nothing on the aggregate deduplicates them.
type Lesson struct {
	learnstream.AggregateBase

	courseID string
	title    string
	content  string
	order    int
	deleted  bool
}

// NewLesson creates an empty Lesson aggregate with the given ID.
func NewLesson(id string) *Lesson {
	return &Lesson{
		AggregateBase: learnstream.NewAggregateBase(id, LessonAggregateType),
	}
}

// Exists reports whether the aggregate has been created and not deleted.
func (l *Lesson) Exists() bool {
	return l.Version() > 0 || l.HasUncommittedEvents()
}

// Deleted reports whether the lesson has been deleted.
func (l *Lesson) Deleted() bool {
	return l.deleted
}

// CourseID returns the owning course ID.
func (l *Lesson) CourseID() string {
	return l.courseID
}

// Create emits LessonCreated. Title and course ID are required; order
// must not be negative and defaults to 0.
func (l *Lesson) Create(courseID, title, content string, order int) error {
	if title == "" {
		return learnstream.NewValidationError("CreateLesson", "title", "title is required")
	}
	if courseID == "" {
		return learnstream.NewValidationError("CreateLesson", "course_id", "course ID is required")
	}
	if order < 0 {
		return learnstream.NewValidationError("CreateLesson", "order", "order must not be negative")
	}

	l.raise(LessonCreated{
		LessonID:  l.AggregateID(),
		CourseID:  courseID,
		Title:     title,
		Content:   content,
		Order:     order,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Update emits LessonUpdated with only the provided fields.
func (l *Lesson) Update(title, content *string, order *int) error {
	if err := l.mutable(); err != nil {
		return err
	}
	if order != nil && *order < 0 {
		return learnstream.NewValidationError("UpdateLesson", "order", "order must not be negative")
	}

	l.raise(LessonUpdated{
		LessonID:  l.AggregateID(),
		Title:     title,
		Content:   content,
		Order:     order,
		UpdatedAt: time.Now().UTC(),
	})
	return nil
}

// Delete emits LessonDeleted. Prior completions are untouched.
func (l *Lesson) Delete() error {
	if err := l.mutable(); err != nil {
		return err
	}

	l.raise(LessonDeleted{
		LessonID:  l.AggregateID(),
		DeletedAt: time.Now().UTC(),
	})
	return nil
}

// Complete emits LessonCompleted for the given user. The completion
// timestamp is taken at command time.
func (l *Lesson) Complete(userID string) error {
	if err := l.mutable(); err != nil {
		return err
	}
	if userID == "" {
		return learnstream.NewValidationError("CompleteLesson", "user_id", "user ID is required")
	}

	l.raise(LessonCompleted{
		UserID:      userID,
		LessonID:    l.AggregateID(),
		CourseID:    l.courseID,
		CompletedAt: time.Now().UTC(),
	})
	return nil
}

func (l *Lesson) mutable() error {
	if !l.Exists() || l.deleted {
		return learnstream.NewAggregateNotFoundError(LessonAggregateType, l.AggregateID())
	}
	return nil
}

func (l *Lesson) raise(event interface{}) {
	_ = l.ApplyEvent(event)
	l.Apply(event)
}

// ApplyEvent folds a single event into the aggregate state.
func (l *Lesson) ApplyEvent(event interface{}) error {
	switch e := event.(type) {
	case LessonCreated:
		l.courseID = e.CourseID
		l.title = e.Title
		l.content = e.Content
		l.order = e.Order
	case *LessonCreated:
		return l.ApplyEvent(*e)
	case LessonUpdated:
		if e.Title != nil {
			l.title = *e.Title
		}
		if e.Content != nil {
			l.content = *e.Content
		}
		if e.Order != nil {
			l.order = *e.Order
		}
	case *LessonUpdated:
		return l.ApplyEvent(*e)
	case LessonDeleted:
		l.deleted = true
	case *LessonDeleted:
		return l.ApplyEvent(*e)
	case LessonCompleted:
		// No aggregate state change; completions accumulate as events.
	case *LessonCompleted:
		return l.ApplyEvent(*e)
	default:
		return fmt.Errorf("lms: lesson cannot apply event type %T", event)
	}
	return nil
}
