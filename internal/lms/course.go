package lms

import (
	"fmt"
	"time"

	learnstream "github.com/learnstream/learnstream"
)

// Course is the aggregate for a course. It validates commands and emits
// events; all state shown to readers lives in the projected read models.
type Course struct {
	learnstream.AggregateBase

	title        string
	description  string
	instructorID string
	deleted      bool
}

// NewCourse creates an empty Course aggregate with the given ID.
func NewCourse(id string) *Course {
	return &Course{
		AggregateBase: learnstream.NewAggregateBase(id, CourseAggregateType),
	}
}

// Exists reports whether the aggregate has been created and not deleted.
func (c *Course) Exists() bool {
	return c.Version() > 0 || c.HasUncommittedEvents()
}

// Deleted reports whether the course has been deleted.
func (c *Course) Deleted() bool {
	return c.deleted
}

// Title returns the current title.
func (c *Course) Title() string {
	return c.title
}

// Create emits CourseCreated. Title and instructor ID are required.
func (c *Course) Create(title, description, instructorID string) error {
	if title == "" {
		return learnstream.NewValidationError("CreateCourse", "title", "title is required")
	}
	if instructorID == "" {
		return learnstream.NewValidationError("CreateCourse", "instructor_id", "instructor ID is required")
	}

	c.raise(CourseCreated{
		CourseID:     c.AggregateID(),
		Title:        title,
		Description:  description,
		InstructorID: instructorID,
		CreatedAt:    time.Now().UTC(),
	})
	return nil
}

// Update emits CourseUpdated with only the provided fields. Nil means the
// field is left as is.
func (c *Course) Update(title, description *string) error {
	if err := c.mutable(); err != nil {
		return err
	}

	c.raise(CourseUpdated{
		CourseID:    c.AggregateID(),
		Title:       title,
		Description: description,
		UpdatedAt:   time.Now().UTC(),
	})
	return nil
}

// Delete emits CourseDeleted. Deleting twice is an error.
func (c *Course) Delete() error {
	if err := c.mutable(); err != nil {
		return err
	}

	c.raise(CourseDeleted{
		CourseID:  c.AggregateID(),
		DeletedAt: time.Now().UTC(),
	})
	return nil
}

func (c *Course) mutable() error {
	if !c.Exists() || c.deleted {
		return learnstream.NewAggregateNotFoundError(CourseAggregateType, c.AggregateID())
	}
	return nil
}

// raise applies the event to local state and records it as uncommitted.
func (c *Course) raise(event interface{}) {
	_ = c.ApplyEvent(event)
	c.Apply(event)
}

// ApplyEvent folds a single event into the aggregate state.
func (c *Course) ApplyEvent(event interface{}) error {
	switch e := event.(type) {
	case CourseCreated:
		c.title = e.Title
		c.description = e.Description
		c.instructorID = e.InstructorID
	case *CourseCreated:
		return c.ApplyEvent(*e)
	case CourseUpdated:
		if e.Title != nil {
			c.title = *e.Title
		}
		if e.Description != nil {
			c.description = *e.Description
		}
	case *CourseUpdated:
		return c.ApplyEvent(*e)
	case CourseDeleted:
		c.deleted = true
	case *CourseDeleted:
		return c.ApplyEvent(*e)
	default:
		return fmt.Errorf("lms: course cannot apply event type %T", event)
	}
	return nil
}
