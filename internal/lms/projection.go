package lms

import (
	"context"
	"fmt"

	learnstream "github.com/learnstream/learnstream"
)

// Projection maintains the course, lesson and completion read models. It
// runs synchronously on the event store write path, so rows are visible
// as soon as the command that produced them returns.
type Projection struct {
	learnstream.ProjectorBase
	models *ReadModels
}

// NewProjection creates the LMS read model projector.
func NewProjection(models *ReadModels) *Projection {
	return &Projection{
		ProjectorBase: learnstream.NewProjectorBase("lms-read-models",
			"CourseCreated", "CourseUpdated", "CourseDeleted",
			"LessonCreated", "LessonUpdated", "LessonDeleted",
			"LessonCompleted"),
		models: models,
	}
}

// Handle applies a single event to the read models.
func (p *Projection) Handle(ctx context.Context, event learnstream.Event) error {
	switch data := event.Data.(type) {
	case CourseCreated:
		return p.courseCreated(ctx, data)
	case *CourseCreated:
		return p.courseCreated(ctx, *data)
	case CourseUpdated:
		return p.courseUpdated(ctx, data)
	case *CourseUpdated:
		return p.courseUpdated(ctx, *data)
	case CourseDeleted:
		return p.courseDeleted(ctx, data)
	case *CourseDeleted:
		return p.courseDeleted(ctx, *data)
	case LessonCreated:
		return p.lessonCreated(ctx, data)
	case *LessonCreated:
		return p.lessonCreated(ctx, *data)
	case LessonUpdated:
		return p.lessonUpdated(ctx, data)
	case *LessonUpdated:
		return p.lessonUpdated(ctx, *data)
	case LessonDeleted:
		return p.lessonDeleted(ctx, data)
	case *LessonDeleted:
		return p.lessonDeleted(ctx, *data)
	case LessonCompleted:
		return p.lessonCompleted(ctx, event, data)
	case *LessonCompleted:
		return p.lessonCompleted(ctx, event, *data)
	default:
		return fmt.Errorf("lms: projection cannot handle event type %T", event.Data)
	}
}

func (p *Projection) courseCreated(ctx context.Context, e CourseCreated) error {
	return p.models.Courses.Upsert(ctx, &CourseRecord{
		ID:           e.CourseID,
		Title:        e.Title,
		Description:  e.Description,
		InstructorID: e.InstructorID,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.CreatedAt,
	})
}

func (p *Projection) courseUpdated(ctx context.Context, e CourseUpdated) error {
	return p.models.Courses.Update(ctx, e.CourseID, func(c *CourseRecord) {
		if e.Title != nil {
			c.Title = *e.Title
		}
		if e.Description != nil {
			c.Description = *e.Description
		}
		c.UpdatedAt = e.UpdatedAt
	})
}

// courseDeleted removes only the course row. Lesson rows and completion
// rows referencing the course stay behind.
func (p *Projection) courseDeleted(ctx context.Context, e CourseDeleted) error {
	return p.models.Courses.Delete(ctx, e.CourseID)
}

func (p *Projection) lessonCreated(ctx context.Context, e LessonCreated) error {
	return p.models.Lessons.Upsert(ctx, &LessonRecord{
		ID:        e.LessonID,
		CourseID:  e.CourseID,
		Title:     e.Title,
		Content:   e.Content,
		Order:     e.Order,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.CreatedAt,
	})
}

func (p *Projection) lessonUpdated(ctx context.Context, e LessonUpdated) error {
	return p.models.Lessons.Update(ctx, e.LessonID, func(l *LessonRecord) {
		if e.Title != nil {
			l.Title = *e.Title
		}
		if e.Content != nil {
			l.Content = *e.Content
		}
		if e.Order != nil {
			l.Order = *e.Order
		}
		l.UpdatedAt = e.UpdatedAt
	})
}

func (p *Projection) lessonDeleted(ctx context.Context, e LessonDeleted) error {
	return p.models.Lessons.Delete(ctx, e.LessonID)
}

func (p *Projection) lessonCompleted(ctx context.Context, event learnstream.Event, e LessonCompleted) error {
	return p.models.Completions.Upsert(ctx, &CompletionRecord{
		ID:          event.ID,
		UserID:      e.UserID,
		LessonID:    e.LessonID,
		CourseID:    e.CourseID,
		CompletedAt: e.CompletedAt,
		CreatedAt:   event.Timestamp,
	})
}
