package learnstream

import (
	"context"
)

// Projector transforms committed events into read models. Projectors
// registered on an EventStore run synchronously, in commit order, as the
// final step of every successful append. An error from a projector is
// returned to the caller of the append.
type Projector interface {
	// Name returns the unique identifier for this projector.
	Name() string

	// HandledEvents returns the event types this projector handles.
	// An empty list means the projector handles all event types.
	HandledEvents() []string

	// Handle processes a single committed event.
	Handle(ctx context.Context, event Event) error
}

// ProjectorBase provides a default partial implementation of Projector.
// Embed this struct in your projector types to get common functionality.
type ProjectorBase struct {
	name          string
	handledEvents []string
}

// NewProjectorBase creates a new ProjectorBase.
func NewProjectorBase(name string, handledEvents ...string) ProjectorBase {
	return ProjectorBase{
		name:          name,
		handledEvents: handledEvents,
	}
}

// Name returns the projector name.
func (p *ProjectorBase) Name() string {
	return p.name
}

// HandledEvents returns the list of event types this projector handles.
func (p *ProjectorBase) HandledEvents() []string {
	return p.handledEvents
}

// HandlesEvent returns true if this projector handles the given event type.
func (p *ProjectorBase) HandlesEvent(eventType string) bool {
	if len(p.handledEvents) == 0 {
		return true // Empty list means handle all events
	}
	for _, et := range p.handledEvents {
		if et == eventType {
			return true
		}
	}
	return false
}

// ProjectorFunc adapts a function to the Projector interface.
type ProjectorFunc struct {
	ProjectorBase
	fn func(ctx context.Context, event Event) error
}

// NewProjectorFunc creates a Projector from a function.
func NewProjectorFunc(name string, fn func(ctx context.Context, event Event) error, handledEvents ...string) *ProjectorFunc {
	return &ProjectorFunc{
		ProjectorBase: NewProjectorBase(name, handledEvents...),
		fn:            fn,
	}
}

// Handle invokes the wrapped function if the event type is handled.
func (p *ProjectorFunc) Handle(ctx context.Context, event Event) error {
	if !p.HandlesEvent(event.Type) {
		return nil
	}
	return p.fn(ctx, event)
}
