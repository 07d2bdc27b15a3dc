// Package reco implements the downstream recommendation service. It
// ingests lesson completion events relayed by the LMS into its own
// event store, projects them into a learner history read model, and
// serves next-course recommendations from that history plus live LMS
// queries.
package reco

import (
	"context"
	"fmt"
	"time"

	learnstream "github.com/learnstream/learnstream"
)

// LearnerAggregateType categorizes the per-user history streams.
const LearnerAggregateType = "Learner"

// LessonCompleted is the completion fact as received from the LMS.
// One is appended to the learner's stream per relayed delivery, with
// no version expectation since deliveries may arrive concurrently.
type LessonCompleted struct {
	UserID      string    `json:"user_id"`
	LessonID    string    `json:"lesson_id"`
	CourseID    string    `json:"course_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Events returns instances of every event type for serializer registration.
func Events() []interface{} {
	return []interface{}{
		LessonCompleted{},
	}
}

// LearnerHistoryRecord is one row of the learner history read model.
type LearnerHistoryRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	LessonID    string    `json:"lesson_id"`
	CourseID    string    `json:"course_id"`
	CompletedAt time.Time `json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// History wraps the learner history repository with its queries.
type History struct {
	Records learnstream.ReadModelRepository[LearnerHistoryRecord]
}

// NewHistory creates an in-memory learner history.
func NewHistory() *History {
	return &History{
		Records: learnstream.NewInMemoryRepository(func(r *LearnerHistoryRecord) string { return r.ID }),
	}
}

// ForUser returns the user's history, most recent completion first.
func (h *History) ForUser(ctx context.Context, userID string) ([]*LearnerHistoryRecord, error) {
	return h.Records.Find(ctx, learnstream.NewQuery().
		Where("user_id", learnstream.FilterOpEq, userID).
		OrderByDesc("completed_at").
		Build())
}

// Projection maintains the learner history read model.
type Projection struct {
	learnstream.ProjectorBase
	history *History
}

// NewProjection creates the learner history projector.
func NewProjection(history *History) *Projection {
	return &Projection{
		ProjectorBase: learnstream.NewProjectorBase("learner-history", "LessonCompleted"),
		history:       history,
	}
}

// Handle inserts a history row for each completion event.
func (p *Projection) Handle(ctx context.Context, event learnstream.Event) error {
	var data LessonCompleted
	switch e := event.Data.(type) {
	case LessonCompleted:
		data = e
	case *LessonCompleted:
		data = *e
	default:
		return fmt.Errorf("reco: projection cannot handle event type %T", event.Data)
	}

	return p.history.Records.Upsert(ctx, &LearnerHistoryRecord{
		ID:          event.ID,
		UserID:      data.UserID,
		LessonID:    data.LessonID,
		CourseID:    data.CourseID,
		CompletedAt: data.CompletedAt,
		CreatedAt:   event.Timestamp,
	})
}

// Ingestor appends relayed completions to the learner's stream. The
// projection picks them up synchronously on the same append.
type Ingestor struct {
	store *learnstream.EventStore
}

// NewIngestor creates an ingestor backed by the given event store.
func NewIngestor(store *learnstream.EventStore) *Ingestor {
	return &Ingestor{store: store}
}

// Ingest records one completion and returns it with its assigned event
// ID. The stream is keyed by user so a learner's history replays in
// arrival order.
func (i *Ingestor) Ingest(ctx context.Context, event LessonCompleted) (learnstream.Event, error) {
	streamID := fmt.Sprintf("%s-%s", LearnerAggregateType, event.UserID)
	stored, err := i.store.AppendReturning(ctx, streamID, []interface{}{event},
		learnstream.ExpectVersion(learnstream.AnyVersion))
	if err != nil {
		return learnstream.Event{}, err
	}
	return stored[0], nil
}
