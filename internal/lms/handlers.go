package lms

import (
	"context"
	"time"

	learnstream "github.com/learnstream/learnstream"
	"github.com/learnstream/learnstream/relay"
)

// CompletionNotifier is told about committed lesson completions so they
// can be forwarded downstream. Implementations must not fail the caller.
type CompletionNotifier interface {
	NotifyLessonCompleted(ctx context.Context, event LessonCompleted)
}

// NopNotifier discards completion notifications.
type NopNotifier struct{}

// NotifyLessonCompleted does nothing.
func (NopNotifier) NotifyLessonCompleted(context.Context, LessonCompleted) {}

// RelayNotifier forwards lesson completions to the recommendation service
// through a fire-and-forget HTTP relay.
type RelayNotifier struct {
	relay *relay.Relay
}

// NewRelayNotifier creates a RelayNotifier on the given relay.
func NewRelayNotifier(r *relay.Relay) *RelayNotifier {
	return &RelayNotifier{relay: r}
}

type completionEnvelope struct {
	Event completionPayload `json:"event"`
}

type completionPayload struct {
	EventType   string `json:"event_type"`
	UserID      string `json:"user_id"`
	LessonID    string `json:"lesson_id"`
	CourseID    string `json:"course_id"`
	CompletedAt string `json:"completed_at"`
}

// NotifyLessonCompleted posts the completion downstream. Delivery is at
// most once; failures are swallowed by the relay.
func (n *RelayNotifier) NotifyLessonCompleted(ctx context.Context, event LessonCompleted) {
	n.relay.Send(ctx, "/api/events/lesson_completed", completionEnvelope{
		Event: completionPayload{
			EventType:   "lesson_completed",
			UserID:      event.UserID,
			LessonID:    event.LessonID,
			CourseID:    event.CourseID,
			CompletedAt: event.CompletedAt.Format(time.RFC3339),
		},
	})
}

// RegisterHandlers wires all LMS command handlers onto the bus.
// The notifier may be nil, in which case completions are not forwarded.
func RegisterHandlers(bus *learnstream.CommandBus, store *learnstream.EventStore, notifier CompletionNotifier) {
	if notifier == nil {
		notifier = NopNotifier{}
	}

	learnstream.RegisterGenericHandler(bus.Registry(), func(ctx context.Context, cmd CreateCourse) (learnstream.CommandResult, error) {
		course := NewCourse(cmd.CourseID)
		if err := course.Create(cmd.Title, cmd.Description, cmd.InstructorID); err != nil {
			return learnstream.NewErrorResult(err), err
		}
		if err := store.SaveAggregate(ctx, course); err != nil {
			return learnstream.NewErrorResult(err), err
		}
		return learnstream.NewSuccessResult(course.AggregateID(), course.Version()), nil
	})

	learnstream.RegisterGenericHandler(bus.Registry(), func(ctx context.Context, cmd UpdateCourse) (learnstream.CommandResult, error) {
		course, err := loadCourse(ctx, store, cmd.CourseID)
		if err != nil {
			return learnstream.NewErrorResult(err), err
		}
		if err := course.Update(cmd.Title, cmd.Description); err != nil {
			return learnstream.NewErrorResult(err), err
		}
		if err := store.SaveAggregate(ctx, course); err != nil {
			return learnstream.NewErrorResult(err), err
		}
		return learnstream.NewSuccessResult(course.AggregateID(), course.Version()), nil
	})

	learnstream.RegisterGenericHandler(bus.Registry(), func(ctx context.Context, cmd DeleteCourse) (learnstream.CommandResult, error) {
		course, err := loadCourse(ctx, store, cmd.CourseID)
		if err != nil {
			return learnstream.NewErrorResult(err), err
		}
		if err := course.Delete(); err != nil {
			return learnstream.NewErrorResult(err), err
		}
		if err := store.SaveAggregate(ctx, course); err != nil {
			return learnstream.NewErrorResult(err), err
		}
		return learnstream.NewSuccessResult(course.AggregateID(), course.Version()), nil
	})

	learnstream.RegisterGenericHandler(bus.Registry(), func(ctx context.Context, cmd CreateLesson) (learnstream.CommandResult, error) {
		lesson := NewLesson(cmd.LessonID)
		if err := lesson.Create(cmd.CourseID, cmd.Title, cmd.Content, cmd.Order); err != nil {
			return learnstream.NewErrorResult(err), err
		}
		if err := store.SaveAggregate(ctx, lesson); err != nil {
			return learnstream.NewErrorResult(err), err
		}
		return learnstream.NewSuccessResult(lesson.AggregateID(), lesson.Version()), nil
	})

	learnstream.RegisterGenericHandler(bus.Registry(), func(ctx context.Context, cmd UpdateLesson) (learnstream.CommandResult, error) {
		lesson, err := loadLesson(ctx, store, cmd.LessonID)
		if err != nil {
			return learnstream.NewErrorResult(err), err
		}
		if err := lesson.Update(cmd.Title, cmd.Content, cmd.Order); err != nil {
			return learnstream.NewErrorResult(err), err
		}
		if err := store.SaveAggregate(ctx, lesson); err != nil {
			return learnstream.NewErrorResult(err), err
		}
		return learnstream.NewSuccessResult(lesson.AggregateID(), lesson.Version()), nil
	})

	learnstream.RegisterGenericHandler(bus.Registry(), func(ctx context.Context, cmd DeleteLesson) (learnstream.CommandResult, error) {
		lesson, err := loadLesson(ctx, store, cmd.LessonID)
		if err != nil {
			return learnstream.NewErrorResult(err), err
		}
		if err := lesson.Delete(); err != nil {
			return learnstream.NewErrorResult(err), err
		}
		if err := store.SaveAggregate(ctx, lesson); err != nil {
			return learnstream.NewErrorResult(err), err
		}
		return learnstream.NewSuccessResult(lesson.AggregateID(), lesson.Version()), nil
	})

	learnstream.RegisterGenericHandler(bus.Registry(), func(ctx context.Context, cmd CompleteLesson) (learnstream.CommandResult, error) {
		lesson, err := loadLesson(ctx, store, cmd.LessonID)
		if err != nil {
			return learnstream.NewErrorResult(err), err
		}
		if err := lesson.Complete(cmd.UserID); err != nil {
			return learnstream.NewErrorResult(err), err
		}

		// Capture the completion before the save clears uncommitted events.
		var completed LessonCompleted
		for _, e := range lesson.UncommittedEvents() {
			if c, ok := e.(LessonCompleted); ok {
				completed = c
			}
		}

		if err := store.SaveAggregate(ctx, lesson); err != nil {
			return learnstream.NewErrorResult(err), err
		}

		notifier.NotifyLessonCompleted(ctx, completed)

		return learnstream.NewSuccessResultWithData(lesson.AggregateID(), lesson.Version(), completed), nil
	})
}

// loadCourse replays a course stream and checks it refers to a live
// aggregate.
func loadCourse(ctx context.Context, store *learnstream.EventStore, id string) (*Course, error) {
	course := NewCourse(id)
	if err := store.LoadAggregate(ctx, course); err != nil {
		return nil, err
	}
	if !course.Exists() || course.Deleted() {
		return nil, learnstream.NewAggregateNotFoundError(CourseAggregateType, id)
	}
	return course, nil
}

// loadLesson replays a lesson stream and checks it refers to a live
// aggregate.
func loadLesson(ctx context.Context, store *learnstream.EventStore, id string) (*Lesson, error) {
	lesson := NewLesson(id)
	if err := store.LoadAggregate(ctx, lesson); err != nil {
		return nil, err
	}
	if !lesson.Exists() || lesson.Deleted() {
		return nil, learnstream.NewAggregateNotFoundError(LessonAggregateType, id)
	}
	return lesson, nil
}
