package learnstream

import (
	"context"
	"errors"
	"testing"

	"github.com/learnstream/learnstream/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test event types for EventStore tests
type StoreTaskCreated struct {
	TaskID string `json:"taskId"`
	Title  string `json:"title"`
}

type StoreTaskRenamed struct {
	TaskID string `json:"taskId"`
	Title  string `json:"title"`
}

type StoreTaskClosed struct {
	TaskID string `json:"taskId"`
}

// Test aggregate for EventStore tests
type StoreTestTask struct {
	AggregateBase
	Title  string
	Closed bool
}

func NewStoreTestTask(id string) *StoreTestTask {
	return &StoreTestTask{
		AggregateBase: NewAggregateBase(id, "Task"),
	}
}

func (t *StoreTestTask) Create(title string) {
	t.Apply(StoreTaskCreated{TaskID: t.AggregateID(), Title: title})
	t.Title = title
}

func (t *StoreTestTask) Rename(title string) {
	t.Apply(StoreTaskRenamed{TaskID: t.AggregateID(), Title: title})
	t.Title = title
}

func (t *StoreTestTask) Close() {
	t.Apply(StoreTaskClosed{TaskID: t.AggregateID()})
	t.Closed = true
}

func (t *StoreTestTask) ApplyEvent(event interface{}) error {
	switch e := event.(type) {
	case StoreTaskCreated:
		t.Title = e.Title
	case *StoreTaskCreated:
		t.Title = e.Title
	case StoreTaskRenamed:
		t.Title = e.Title
	case *StoreTaskRenamed:
		t.Title = e.Title
	case StoreTaskClosed, *StoreTaskClosed:
		t.Closed = true
	}
	return nil
}

// capturingProjector records every event it receives.
type capturingProjector struct {
	ProjectorBase
	events []Event
	err    error
}

func newCapturingProjector(name string) *capturingProjector {
	return &capturingProjector{ProjectorBase: NewProjectorBase(name)}
}

func (p *capturingProjector) Handle(ctx context.Context, event Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func TestEventStore_New(t *testing.T) {
	t.Run("creates with default serializer", func(t *testing.T) {
		adapter := memory.NewAdapter()
		store := New(adapter)

		assert.NotNil(t, store.Serializer())
		assert.Equal(t, adapter, store.Adapter())
	})

	t.Run("creates with custom logger", func(t *testing.T) {
		store := New(memory.NewAdapter(), WithLogger(NopLogger()))

		assert.NotNil(t, store)
	})
}

func TestEventStore_RegisterEvents(t *testing.T) {
	t.Run("registers event types on the serializer", func(t *testing.T) {
		store := New(memory.NewAdapter())

		store.RegisterEvents(StoreTaskCreated{}, StoreTaskRenamed{})

		serializer := store.Serializer().(*JSONSerializer)
		_, ok := serializer.Registry().Lookup("StoreTaskCreated")
		assert.True(t, ok)
	})
}

func TestEventStore_Append(t *testing.T) {
	t.Run("appends events to a new stream", func(t *testing.T) {
		adapter := memory.NewAdapter()
		store := New(adapter)

		err := store.Append(context.Background(), "Task-1", []interface{}{
			StoreTaskCreated{TaskID: "1", Title: "write docs"},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, adapter.EventCount())
	})

	t.Run("rejects empty stream id", func(t *testing.T) {
		store := New(memory.NewAdapter())

		err := store.Append(context.Background(), "", []interface{}{StoreTaskCreated{}})

		assert.ErrorIs(t, err, ErrEmptyStreamID)
	})

	t.Run("rejects empty event slice", func(t *testing.T) {
		store := New(memory.NewAdapter())

		err := store.Append(context.Background(), "Task-1", nil)

		assert.ErrorIs(t, err, ErrNoEvents)
	})

	t.Run("enforces expected version", func(t *testing.T) {
		store := New(memory.NewAdapter())
		ctx := context.Background()

		require.NoError(t, store.Append(ctx, "Task-1", []interface{}{
			StoreTaskCreated{TaskID: "1"},
		}))

		err := store.Append(ctx, "Task-1", []interface{}{
			StoreTaskRenamed{TaskID: "1"},
		}, ExpectVersion(NoStream))

		assert.ErrorIs(t, err, ErrConcurrencyConflict)
	})
}

func TestEventStore_AppendReturning(t *testing.T) {
	t.Run("returns stored events with ids and versions", func(t *testing.T) {
		store := New(memory.NewAdapter())

		stored, err := store.AppendReturning(context.Background(), "Task-1", []interface{}{
			StoreTaskCreated{TaskID: "1", Title: "a"},
			StoreTaskRenamed{TaskID: "1", Title: "b"},
		})

		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.NotEmpty(t, stored[0].ID)
		assert.Equal(t, int64(1), stored[0].Version)
		assert.Equal(t, int64(2), stored[1].Version)
		assert.Equal(t, "StoreTaskRenamed", stored[1].Type)
		assert.Equal(t, StoreTaskRenamed{TaskID: "1", Title: "b"}, stored[1].Data)
	})
}

func TestEventStore_Dispatch(t *testing.T) {
	t.Run("delivers committed events to projectors in order", func(t *testing.T) {
		projector := newCapturingProjector("capture")
		store := New(memory.NewAdapter(), WithProjectors(projector))

		err := store.Append(context.Background(), "Task-1", []interface{}{
			StoreTaskCreated{TaskID: "1", Title: "a"},
			StoreTaskRenamed{TaskID: "1", Title: "b"},
		})

		require.NoError(t, err)
		require.Len(t, projector.events, 2)
		assert.Equal(t, "StoreTaskCreated", projector.events[0].Type)
		assert.Equal(t, "StoreTaskRenamed", projector.events[1].Type)
		assert.Equal(t, StoreTaskCreated{TaskID: "1", Title: "a"}, projector.events[0].Data)
	})

	t.Run("surfaces projector failure", func(t *testing.T) {
		projector := newCapturingProjector("boom")
		projector.err = errors.New("projection broke")
		store := New(memory.NewAdapter(), WithProjectors(projector))

		err := store.Append(context.Background(), "Task-1", []interface{}{
			StoreTaskCreated{TaskID: "1"},
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestEventStore_Load(t *testing.T) {
	t.Run("round-trips registered events", func(t *testing.T) {
		store := New(memory.NewAdapter())
		store.RegisterEvents(StoreTaskCreated{}, StoreTaskRenamed{})
		ctx := context.Background()

		require.NoError(t, store.Append(ctx, "Task-1", []interface{}{
			StoreTaskCreated{TaskID: "1", Title: "a"},
			StoreTaskRenamed{TaskID: "1", Title: "b"},
		}))

		events, err := store.Load(ctx, "Task-1")

		require.NoError(t, err)
		require.Len(t, events, 2)
		created, ok := events[0].Data.(*StoreTaskCreated)
		require.True(t, ok)
		assert.Equal(t, "a", created.Title)
	})

	t.Run("loads from a version offset", func(t *testing.T) {
		store := New(memory.NewAdapter())
		store.RegisterEvents(StoreTaskCreated{}, StoreTaskRenamed{})
		ctx := context.Background()

		require.NoError(t, store.Append(ctx, "Task-1", []interface{}{
			StoreTaskCreated{TaskID: "1"},
			StoreTaskRenamed{TaskID: "1", Title: "b"},
		}))

		events, err := store.LoadFrom(ctx, "Task-1", 1)

		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, int64(2), events[0].Version)
	})
}

func TestEventStore_SaveAggregate(t *testing.T) {
	t.Run("persists uncommitted events and advances version", func(t *testing.T) {
		adapter := memory.NewAdapter()
		store := New(adapter)
		store.RegisterEvents(StoreTaskCreated{}, StoreTaskRenamed{}, StoreTaskClosed{})
		ctx := context.Background()

		task := NewStoreTestTask("42")
		task.Create("first")
		task.Rename("second")

		require.NoError(t, store.SaveAggregate(ctx, task))

		assert.Equal(t, int64(2), task.Version())
		assert.Empty(t, task.UncommittedEvents())
		assert.Equal(t, 2, adapter.EventCount())
	})

	t.Run("save with nothing pending is a no-op", func(t *testing.T) {
		adapter := memory.NewAdapter()
		store := New(adapter)

		require.NoError(t, store.SaveAggregate(context.Background(), NewStoreTestTask("42")))
		assert.Equal(t, 0, adapter.EventCount())
	})

	t.Run("concurrent saves from the same version conflict", func(t *testing.T) {
		store := New(memory.NewAdapter())
		store.RegisterEvents(StoreTaskCreated{}, StoreTaskRenamed{})
		ctx := context.Background()

		task := NewStoreTestTask("42")
		task.Create("first")
		require.NoError(t, store.SaveAggregate(ctx, task))

		a := NewStoreTestTask("42")
		require.NoError(t, store.LoadAggregate(ctx, a))
		b := NewStoreTestTask("42")
		require.NoError(t, store.LoadAggregate(ctx, b))

		a.Rename("from a")
		b.Rename("from b")

		require.NoError(t, store.SaveAggregate(ctx, a))
		err := store.SaveAggregate(ctx, b)

		assert.ErrorIs(t, err, ErrConcurrencyConflict)
	})
}

func TestEventStore_LoadAggregate(t *testing.T) {
	t.Run("replays state and version", func(t *testing.T) {
		store := New(memory.NewAdapter())
		store.RegisterEvents(StoreTaskCreated{}, StoreTaskRenamed{}, StoreTaskClosed{})
		ctx := context.Background()

		task := NewStoreTestTask("42")
		task.Create("first")
		task.Rename("second")
		task.Close()
		require.NoError(t, store.SaveAggregate(ctx, task))

		loaded := NewStoreTestTask("42")
		require.NoError(t, store.LoadAggregate(ctx, loaded))

		assert.Equal(t, "second", loaded.Title)
		assert.True(t, loaded.Closed)
		assert.Equal(t, int64(3), loaded.Version())
	})

	t.Run("missing stream leaves the aggregate untouched", func(t *testing.T) {
		store := New(memory.NewAdapter())

		loaded := NewStoreTestTask("nope")
		require.NoError(t, store.LoadAggregate(context.Background(), loaded))

		assert.Equal(t, int64(0), loaded.Version())
	})
}

func TestEventStore_GetStreamInfo(t *testing.T) {
	t.Run("reports version and event count", func(t *testing.T) {
		store := New(memory.NewAdapter())
		ctx := context.Background()

		require.NoError(t, store.Append(ctx, "Task-1", []interface{}{
			StoreTaskCreated{TaskID: "1"},
			StoreTaskRenamed{TaskID: "1"},
		}))

		info, err := store.GetStreamInfo(ctx, "Task-1")

		require.NoError(t, err)
		assert.Equal(t, int64(2), info.Version)
		assert.Equal(t, int64(2), info.EventCount)
	})

	t.Run("unknown stream returns ErrStreamNotFound", func(t *testing.T) {
		store := New(memory.NewAdapter())

		_, err := store.GetStreamInfo(context.Background(), "Task-404")

		assert.ErrorIs(t, err, ErrStreamNotFound)
	})
}
