package learnstream

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/goccy/go-json"
)

// Serializer converts domain events to and from their stored byte form.
type Serializer interface {
	// Serialize converts an event to bytes.
	Serialize(event any) ([]byte, error)

	// Deserialize converts bytes back to an event of the given type.
	Deserialize(eventType string, data []byte) (any, error)

	// ContentType returns the serialization format identifier.
	ContentType() string
}

// EventRegistry maps event type names to Go types so that
// deserialization can reconstruct concrete event values.
type EventRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewEventRegistry creates an empty event registry.
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{
		types: make(map[string]reflect.Type),
	}
}

// Register adds an event type to the registry under the given name.
// The event should be a struct value; pointers are dereferenced.
func (r *EventRegistry) Register(eventType string, event any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := reflect.TypeOf(event)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.types[eventType] = t
}

// RegisterAll registers multiple events using their type names.
func (r *EventRegistry) RegisterAll(events ...any) {
	for _, event := range events {
		r.Register(GetEventType(event), event)
	}
}

// Lookup returns the Go type registered under the given name.
func (r *EventRegistry) Lookup(eventType string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[eventType]
	return t, ok
}

// RegisteredTypes returns all registered event type names.
func (r *EventRegistry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	return names
}

// GetEventType returns the event type name for a value,
// derived from its Go type name.
func GetEventType(event any) string {
	t := reflect.TypeOf(event)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// JSONSerializer serializes events as JSON using a type registry
// for deserialization.
type JSONSerializer struct {
	registry *EventRegistry
}

// NewJSONSerializer creates a JSON serializer with the given registry.
// If registry is nil, a new empty registry is created.
func NewJSONSerializer(registry *EventRegistry) *JSONSerializer {
	if registry == nil {
		registry = NewEventRegistry()
	}
	return &JSONSerializer{registry: registry}
}

// Registry returns the underlying event registry.
func (s *JSONSerializer) Registry() *EventRegistry {
	return s.registry
}

// Serialize converts an event to JSON bytes.
func (s *JSONSerializer) Serialize(event any) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, NewSerializationError(GetEventType(event), "serialize", err)
	}
	return data, nil
}

// Deserialize converts JSON bytes back to a concrete event value.
// The returned value is a pointer to the registered struct type.
func (s *JSONSerializer) Deserialize(eventType string, data []byte) (any, error) {
	t, ok := s.registry.Lookup(eventType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventTypeNotRegistered, eventType)
	}

	event := reflect.New(t).Interface()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, NewSerializationError(eventType, "deserialize", err)
	}
	return event, nil
}

// ContentType returns the JSON content type.
func (s *JSONSerializer) ContentType() string {
	return "application/json"
}
