// Package learnstream provides the event sourcing core shared by the LMS
// system-of-record service and the downstream recommendation service: an
// append-only event store with optimistic concurrency, aggregates rebuilt by
// folding their event streams, a command bus with middleware, and projectors
// that keep denormalized read models in sync with committed events.
package learnstream

import (
	"errors"
	"fmt"

	"github.com/learnstream/learnstream/adapters"
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these errors.
// Storage-level errors are aliases to the adapters package for compatibility.
var (
	// ErrStreamNotFound indicates the requested stream does not exist.
	ErrStreamNotFound = adapters.ErrStreamNotFound

	// ErrConcurrencyConflict indicates an optimistic concurrency violation.
	// Commands hitting this are retryable: reload the aggregate and re-apply.
	ErrConcurrencyConflict = adapters.ErrConcurrencyConflict

	// ErrAggregateNotFound indicates a command targeted an aggregate that has
	// no events, or one whose stream ends in a terminal delete.
	ErrAggregateNotFound = errors.New("learnstream: aggregate not found")

	// ErrSerializationFailed indicates event serialization/deserialization failed.
	ErrSerializationFailed = errors.New("learnstream: serialization failed")

	// ErrEventTypeNotRegistered indicates an unknown event type was encountered.
	ErrEventTypeNotRegistered = errors.New("learnstream: event type not registered")

	// ErrNilAggregate indicates a nil aggregate was passed.
	ErrNilAggregate = errors.New("learnstream: nil aggregate")

	// ErrEmptyStreamID indicates an empty stream ID was provided.
	ErrEmptyStreamID = adapters.ErrEmptyStreamID

	// ErrNoEvents indicates no events were provided for append.
	ErrNoEvents = adapters.ErrNoEvents

	// ErrInvalidVersion indicates an invalid version number was provided.
	ErrInvalidVersion = adapters.ErrInvalidVersion

	// ErrAdapterClosed indicates the adapter has been closed.
	ErrAdapterClosed = adapters.ErrAdapterClosed

	// ErrHandlerNotFound indicates no handler is registered for a command type.
	ErrHandlerNotFound = errors.New("learnstream: handler not found")

	// ErrValidationFailed indicates command validation failed. No events are
	// emitted and nothing is written when validation fails.
	ErrValidationFailed = errors.New("learnstream: validation failed")

	// ErrUpstreamUnavailable indicates a network or timeout failure talking to
	// the other service. Callers catch it and degrade (recommendation falls
	// back, relay drops the event); it is never surfaced to API clients.
	ErrUpstreamUnavailable = errors.New("learnstream: upstream service unavailable")

	// ErrNilCommand indicates a nil command was passed.
	ErrNilCommand = errors.New("learnstream: nil command")

	// ErrHandlerPanicked indicates a handler panicked during execution.
	ErrHandlerPanicked = errors.New("learnstream: handler panicked")

	// ErrCommandBusClosed indicates the command bus has been closed.
	ErrCommandBusClosed = errors.New("learnstream: command bus closed")
)

// ConcurrencyError provides detailed information about a concurrency conflict.
type ConcurrencyError struct {
	StreamID        string
	ExpectedVersion int64
	ActualVersion   int64
}

// Error returns the error message.
func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("learnstream: concurrency conflict on stream %q: expected version %d, actual version %d",
		e.StreamID, e.ExpectedVersion, e.ActualVersion)
}

// Is reports whether this error matches the target error.
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrencyConflict || target == adapters.ErrConcurrencyConflict
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *ConcurrencyError) Unwrap() error {
	return ErrConcurrencyConflict
}

// NewConcurrencyError creates a new ConcurrencyError.
func NewConcurrencyError(streamID string, expected, actual int64) *ConcurrencyError {
	return &ConcurrencyError{
		StreamID:        streamID,
		ExpectedVersion: expected,
		ActualVersion:   actual,
	}
}

// StreamNotFoundError provides detailed information about a missing stream.
type StreamNotFoundError struct {
	StreamID string
}

// Error returns the error message.
func (e *StreamNotFoundError) Error() string {
	return fmt.Sprintf("learnstream: stream %q not found", e.StreamID)
}

// Is reports whether this error matches the target error.
func (e *StreamNotFoundError) Is(target error) bool {
	return target == ErrStreamNotFound || target == adapters.ErrStreamNotFound
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *StreamNotFoundError) Unwrap() error {
	return ErrStreamNotFound
}

// NewStreamNotFoundError creates a new StreamNotFoundError.
func NewStreamNotFoundError(streamID string) *StreamNotFoundError {
	return &StreamNotFoundError{StreamID: streamID}
}

// AggregateNotFoundError reports a command targeting a nonexistent (or
// deleted) aggregate.
type AggregateNotFoundError struct {
	AggregateType string
	AggregateID   string
}

// Error returns the error message.
func (e *AggregateNotFoundError) Error() string {
	return fmt.Sprintf("learnstream: %s %q not found", e.AggregateType, e.AggregateID)
}

// Is reports whether this error matches the target error.
func (e *AggregateNotFoundError) Is(target error) bool {
	return target == ErrAggregateNotFound
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *AggregateNotFoundError) Unwrap() error {
	return ErrAggregateNotFound
}

// NewAggregateNotFoundError creates a new AggregateNotFoundError.
func NewAggregateNotFoundError(aggregateType, aggregateID string) *AggregateNotFoundError {
	return &AggregateNotFoundError{AggregateType: aggregateType, AggregateID: aggregateID}
}

// SerializationError provides detailed information about a serialization failure.
type SerializationError struct {
	EventType string
	Operation string // "serialize" or "deserialize"
	Cause     error
}

// Error returns the error message.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("learnstream: failed to %s event type %q: %v",
		e.Operation, e.EventType, e.Cause)
}

// Is reports whether this error matches the target error.
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerializationFailed
}

// Unwrap returns the underlying cause for errors.Unwrap().
func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// NewSerializationError creates a new SerializationError.
func NewSerializationError(eventType, operation string, cause error) *SerializationError {
	return &SerializationError{
		EventType: eventType,
		Operation: operation,
		Cause:     cause,
	}
}

// ValidationError represents a command validation failure.
type ValidationError struct {
	// CommandType is the type of command that failed validation.
	CommandType string

	// Field is the field that failed validation (optional).
	Field string

	// Message describes the validation failure.
	Message string

	// Cause is the underlying error (optional).
	Cause error
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("learnstream: validation failed for command %q field %q: %s",
			e.CommandType, e.Field, e.Message)
	}
	return fmt.Sprintf("learnstream: validation failed for command %q: %s",
		e.CommandType, e.Message)
}

// Is reports whether this error matches the target error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Unwrap returns the underlying cause for errors.Unwrap().
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new ValidationError.
func NewValidationError(cmdType, field, message string) *ValidationError {
	return &ValidationError{
		CommandType: cmdType,
		Field:       field,
		Message:     message,
	}
}

// HandlerNotFoundError provides detailed information about a missing handler.
type HandlerNotFoundError struct {
	CommandType string
}

// Error returns the error message.
func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("learnstream: no handler registered for command type %q", e.CommandType)
}

// Is reports whether this error matches the target error.
func (e *HandlerNotFoundError) Is(target error) bool {
	return target == ErrHandlerNotFound
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *HandlerNotFoundError) Unwrap() error {
	return ErrHandlerNotFound
}

// NewHandlerNotFoundError creates a new HandlerNotFoundError.
func NewHandlerNotFoundError(cmdType string) *HandlerNotFoundError {
	return &HandlerNotFoundError{CommandType: cmdType}
}

// PanicError provides detailed information about a handler panic.
type PanicError struct {
	CommandType string
	Value       interface{}
	Stack       string
}

// Error returns the error message.
func (e *PanicError) Error() string {
	return fmt.Sprintf("learnstream: handler panicked while processing %q: %v", e.CommandType, e.Value)
}

// Is reports whether this error matches the target error.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanicked
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *PanicError) Unwrap() error {
	return ErrHandlerPanicked
}

// NewPanicError creates a new PanicError.
func NewPanicError(cmdType string, value interface{}, stack string) *PanicError {
	return &PanicError{
		CommandType: cmdType,
		Value:       value,
		Stack:       stack,
	}
}

// UpstreamError wraps a transport failure against the peer service.
type UpstreamError struct {
	Operation string
	URL       string
	Cause     error
}

// Error returns the error message.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("learnstream: upstream %s %s failed: %v", e.Operation, e.URL, e.Cause)
}

// Is reports whether this error matches the target error.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// Unwrap returns the underlying cause for errors.Unwrap().
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(operation, url string, cause error) *UpstreamError {
	return &UpstreamError{Operation: operation, URL: url, Cause: cause}
}
