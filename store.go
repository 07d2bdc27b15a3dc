package learnstream

import (
	"context"
	"fmt"

	"github.com/learnstream/learnstream/adapters"
)

// EventStore is the main entry point for event sourcing operations.
// It appends events, loads and saves aggregates, and dispatches newly
// committed events to registered projectors.
type EventStore struct {
	adapter    adapters.EventStoreAdapter
	serializer Serializer
	logger     Logger
	projectors []Projector
}

// Logger defines the logging interface used throughout the library.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// noopLogger is a no-op logger implementation.
type noopLogger struct{}

func (l *noopLogger) Debug(msg string, args ...interface{}) {}
func (l *noopLogger) Info(msg string, args ...interface{})  {}
func (l *noopLogger) Warn(msg string, args ...interface{})  {}
func (l *noopLogger) Error(msg string, args ...interface{}) {}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return &noopLogger{}
}

// Option configures an EventStore.
type Option func(*EventStore)

// WithSerializer sets a custom serializer.
func WithSerializer(s Serializer) Option {
	return func(es *EventStore) {
		es.serializer = s
	}
}

// WithLogger sets a custom logger.
func WithLogger(l Logger) Option {
	return func(es *EventStore) {
		es.logger = l
	}
}

// WithProjectors registers projectors that receive committed events
// synchronously, in commit order, as part of each successful append.
func WithProjectors(projectors ...Projector) Option {
	return func(es *EventStore) {
		es.projectors = append(es.projectors, projectors...)
	}
}

// New creates a new EventStore with the given adapter and options.
func New(adapter adapters.EventStoreAdapter, opts ...Option) *EventStore {
	es := &EventStore{
		adapter:    adapter,
		serializer: NewJSONSerializer(nil),
		logger:     &noopLogger{},
	}

	for _, opt := range opts {
		opt(es)
	}

	return es
}

// Serializer returns the event store's serializer.
func (s *EventStore) Serializer() Serializer {
	return s.serializer
}

// Adapter returns the underlying adapter.
func (s *EventStore) Adapter() adapters.EventStoreAdapter {
	return s.adapter
}

// RegisterEvents registers event types with the serializer.
// This is required for deserializing events back to their original types.
func (s *EventStore) RegisterEvents(events ...interface{}) {
	type registrar interface {
		Registry() *EventRegistry
	}
	if r, ok := s.serializer.(registrar); ok {
		r.Registry().RegisterAll(events...)
	}
}

// RegisterProjector adds a projector after construction. Projectors are
// invoked in registration order for every committed event.
func (s *EventStore) RegisterProjector(p Projector) {
	s.projectors = append(s.projectors, p)
}

// AppendOption configures an append operation.
type AppendOption func(*appendConfig)

type appendConfig struct {
	metadata        Metadata
	expectedVersion int64
}

// ExpectVersion sets the expected stream version for optimistic concurrency.
func ExpectVersion(v int64) AppendOption {
	return func(c *appendConfig) {
		c.expectedVersion = v
	}
}

// WithAppendMetadata sets metadata for all events in the append operation.
func WithAppendMetadata(m Metadata) AppendOption {
	return func(c *appendConfig) {
		c.metadata = m
	}
}

// Append stores events to the specified stream and dispatches them to
// registered projectors. Events are Go structs serialized with the
// configured serializer.
func (s *EventStore) Append(ctx context.Context, streamID string, events []interface{}, opts ...AppendOption) error {
	_, err := s.AppendReturning(ctx, streamID, events, opts...)
	return err
}

// AppendReturning is Append, additionally returning the stored events
// with their assigned IDs, versions and positions.
func (s *EventStore) AppendReturning(ctx context.Context, streamID string, events []interface{}, opts ...AppendOption) ([]Event, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	config := &appendConfig{
		expectedVersion: AnyVersion,
	}

	for _, opt := range opts {
		opt(config)
	}

	records := make([]adapters.EventRecord, len(events))
	for i, event := range events {
		data, err := s.serializer.Serialize(event)
		if err != nil {
			return nil, fmt.Errorf("learnstream: failed to serialize event %d: %w", i, err)
		}

		records[i] = adapters.EventRecord{
			Type:     GetEventType(event),
			Data:     data,
			Metadata: convertMetadataToAdapter(config.metadata),
		}
	}

	stored, err := s.adapter.Append(ctx, streamID, records, config.expectedVersion)
	if err != nil {
		return nil, err
	}

	return s.dispatch(ctx, stored, events)
}

// dispatch hands committed events to registered projectors in commit order
// and returns them in Event form. The payloads are the original event
// values; no round trip through the serializer is needed on the write path.
func (s *EventStore) dispatch(ctx context.Context, stored []adapters.StoredEvent, payloads []interface{}) ([]Event, error) {
	committed := make([]Event, len(stored))
	for i, se := range stored {
		committed[i] = EventFromStored(convertStoredEventFromAdapter(se), payloads[i])
	}

	for _, event := range committed {
		for _, p := range s.projectors {
			if err := p.Handle(ctx, event); err != nil {
				return committed, fmt.Errorf("learnstream: projector %s failed on event %s: %w",
					p.Name(), event.Type, err)
			}
		}
	}

	return committed, nil
}

// Load retrieves all events from a stream.
func (s *EventStore) Load(ctx context.Context, streamID string) ([]Event, error) {
	return s.LoadFrom(ctx, streamID, 0)
}

// LoadFrom retrieves events from a stream starting after the specified version.
func (s *EventStore) LoadFrom(ctx context.Context, streamID string, fromVersion int64) ([]Event, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	storedEvents, err := s.adapter.Load(ctx, streamID, fromVersion)
	if err != nil {
		return nil, err
	}

	events := make([]Event, len(storedEvents))
	for i, stored := range storedEvents {
		data, err := s.serializer.Deserialize(stored.Type, stored.Data)
		if err != nil {
			return nil, fmt.Errorf("learnstream: failed to deserialize event %d: %w", i, err)
		}
		events[i] = EventFromStored(convertStoredEventFromAdapter(stored), data)
	}

	return events, nil
}

// LoadRaw retrieves raw (non-deserialized) events from a stream.
func (s *EventStore) LoadRaw(ctx context.Context, streamID string, fromVersion int64) ([]StoredEvent, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	storedEvents, err := s.adapter.Load(ctx, streamID, fromVersion)
	if err != nil {
		return nil, err
	}

	result := make([]StoredEvent, len(storedEvents))
	for i, stored := range storedEvents {
		result[i] = convertStoredEventFromAdapter(stored)
	}
	return result, nil
}

// SaveAggregate persists uncommitted events from an aggregate and
// dispatches them to registered projectors. The aggregate's version is
// used for optimistic concurrency control.
//
// After a successful save the aggregate's version is advanced to the new
// stream version, allowing subsequent modifications without reloading.
func (s *EventStore) SaveAggregate(ctx context.Context, agg Aggregate) error {
	return s.SaveAggregateWithMetadata(ctx, agg, Metadata{})
}

// SaveAggregateWithMetadata is SaveAggregate with event metadata attached
// to every persisted event.
func (s *EventStore) SaveAggregateWithMetadata(ctx context.Context, agg Aggregate, meta Metadata) error {
	if agg == nil {
		return ErrNilAggregate
	}

	events := agg.UncommittedEvents()
	if len(events) == 0 {
		return nil // Nothing to save
	}

	streamID := fmt.Sprintf("%s-%s", agg.AggregateType(), agg.AggregateID())

	records := make([]adapters.EventRecord, len(events))
	for i, event := range events {
		data, err := s.serializer.Serialize(event)
		if err != nil {
			return fmt.Errorf("learnstream: failed to serialize aggregate event %d: %w", i, err)
		}

		records[i] = adapters.EventRecord{
			Type:     GetEventType(event),
			Data:     data,
			Metadata: convertMetadataToAdapter(meta),
		}
	}

	// Use aggregate version for optimistic concurrency
	expectedVersion := agg.Version()

	stored, err := s.adapter.Append(ctx, streamID, records, expectedVersion)
	if err != nil {
		return err
	}

	// New version = old version + number of events saved.
	if setter, ok := agg.(VersionSetter); ok {
		setter.SetVersion(expectedVersion + int64(len(events)))
	}

	agg.ClearUncommittedEvents()

	_, err = s.dispatch(ctx, stored, events)
	return err
}

// LoadAggregate loads an aggregate's state by replaying its events.
// The aggregate should be a new instance with its ID and type already set.
//
// The aggregate's version is set to the last loaded event version, which
// is required for optimistic concurrency control on a later save.
// AggregateBase implements VersionSetter, so aggregates embedding it get
// this automatically.
func (s *EventStore) LoadAggregate(ctx context.Context, agg Aggregate) error {
	if agg == nil {
		return ErrNilAggregate
	}

	streamID := fmt.Sprintf("%s-%s", agg.AggregateType(), agg.AggregateID())

	storedEvents, err := s.adapter.Load(ctx, streamID, 0)
	if err != nil {
		return err
	}

	var lastVersion int64
	for i, stored := range storedEvents {
		data, err := s.serializer.Deserialize(stored.Type, stored.Data)
		if err != nil {
			return fmt.Errorf("learnstream: failed to deserialize event %d: %w", i, err)
		}

		if err := agg.ApplyEvent(data); err != nil {
			return fmt.Errorf("learnstream: failed to apply event %d: %w", i, err)
		}

		lastVersion = stored.Version
	}

	if setter, ok := agg.(VersionSetter); ok && len(storedEvents) > 0 {
		setter.SetVersion(lastVersion)
	}

	return nil
}

// GetStreamInfo returns metadata about a stream.
func (s *EventStore) GetStreamInfo(ctx context.Context, streamID string) (*StreamInfo, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	info, err := s.adapter.GetStreamInfo(ctx, streamID)
	if err != nil {
		return nil, err
	}

	return &StreamInfo{
		StreamID:   info.StreamID,
		Category:   info.Category,
		Version:    info.Version,
		EventCount: info.EventCount,
		CreatedAt:  info.CreatedAt,
		UpdatedAt:  info.UpdatedAt,
	}, nil
}

// GetLastPosition returns the global position of the last stored event.
func (s *EventStore) GetLastPosition(ctx context.Context) (uint64, error) {
	return s.adapter.GetLastPosition(ctx)
}

// Initialize sets up the required storage schema.
func (s *EventStore) Initialize(ctx context.Context) error {
	return s.adapter.Initialize(ctx)
}

// Close releases resources held by the event store.
func (s *EventStore) Close() error {
	return s.adapter.Close()
}

// Conversion helper functions

func convertMetadataToAdapter(m Metadata) adapters.Metadata {
	return adapters.Metadata{
		CorrelationID: m.CorrelationID,
		CausationID:   m.CausationID,
		UserID:        m.UserID,
		Custom:        m.Custom,
	}
}

func convertMetadataFromAdapter(m adapters.Metadata) Metadata {
	return Metadata{
		CorrelationID: m.CorrelationID,
		CausationID:   m.CausationID,
		UserID:        m.UserID,
		Custom:        m.Custom,
	}
}

func convertStoredEventFromAdapter(s adapters.StoredEvent) StoredEvent {
	return StoredEvent{
		ID:             s.ID,
		StreamID:       s.StreamID,
		Type:           s.Type,
		Data:           s.Data,
		Metadata:       convertMetadataFromAdapter(s.Metadata),
		Version:        s.Version,
		GlobalPosition: s.GlobalPosition,
		Timestamp:      s.Timestamp,
	}
}
