// Package metrics provides Prometheus metrics integration for learnstream.
//
// It covers command execution, event store operations, projector
// processing, and event relay deliveries.
//
// Basic usage:
//
//	m := metrics.New(metrics.WithServiceName("lms"))
//	m.MustRegister()
//
//	bus := learnstream.NewCommandBus()
//	bus.Use(m.CommandMiddleware())
//
//	adapter := m.WrapEventStore(memory.NewAdapter())
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	learnstream "github.com/learnstream/learnstream"
	"github.com/learnstream/learnstream/adapters"
)

// Default metric labels.
const (
	LabelCommandType   = "command_type"
	LabelEventType     = "event_type"
	LabelProjectorName = "projector_name"
	LabelOperation     = "operation"
	LabelStatus        = "status"
	LabelErrorType     = "error_type"
	LabelService       = "service"
	LabelTarget        = "target"
)

// Status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation values.
const (
	OperationAppend = "append"
	OperationLoad   = "load"
)

// Metrics holds all Prometheus metrics for learnstream services.
type Metrics struct {
	namespace   string
	subsystem   string
	serviceName string

	// Command metrics
	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	commandsInFlight *prometheus.GaugeVec

	// Event store metrics
	eventStoreOperationsTotal   *prometheus.CounterVec
	eventStoreOperationDuration *prometheus.HistogramVec
	eventsAppendedTotal         *prometheus.CounterVec
	eventsLoadedTotal           *prometheus.CounterVec

	// Projector metrics
	projectorsProcessedTotal *prometheus.CounterVec
	projectorDuration        *prometheus.HistogramVec

	// Relay metrics
	relayDeliveriesTotal *prometheus.CounterVec
	relayDuration        *prometheus.HistogramVec

	// Error metrics
	errorsTotal *prometheus.CounterVec
}

// Option configures Metrics.
type Option func(*Metrics)

// WithNamespace sets the Prometheus namespace.
func WithNamespace(namespace string) Option {
	return func(m *Metrics) {
		m.namespace = namespace
	}
}

// WithSubsystem sets the Prometheus subsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Metrics) {
		m.subsystem = subsystem
	}
}

// WithServiceName sets the service name label.
func WithServiceName(name string) Option {
	return func(m *Metrics) {
		m.serviceName = name
	}
}

// New creates a new Metrics instance with default settings.
func New(opts ...Option) *Metrics {
	m := &Metrics{
		namespace:   "learnstream",
		subsystem:   "",
		serviceName: "unknown",
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initMetrics()
	return m
}

func (m *Metrics) initMetrics() {
	m.commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "commands_total",
			Help:      "Total number of commands processed.",
		},
		[]string{LabelService, LabelCommandType, LabelStatus},
	)

	m.commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "command_duration_seconds",
			Help:      "Duration of command processing in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelService, LabelCommandType},
	)

	m.commandsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "commands_in_flight",
			Help:      "Number of commands currently being processed.",
		},
		[]string{LabelService, LabelCommandType},
	)

	m.eventStoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "eventstore_operations_total",
			Help:      "Total number of event store operations.",
		},
		[]string{LabelService, LabelOperation, LabelStatus},
	)

	m.eventStoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "eventstore_operation_duration_seconds",
			Help:      "Duration of event store operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelService, LabelOperation},
	)

	m.eventsAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_appended_total",
			Help:      "Total number of events appended to streams.",
		},
		[]string{LabelService, LabelEventType},
	)

	m.eventsLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_loaded_total",
			Help:      "Total number of events loaded from streams.",
		},
		[]string{LabelService},
	)

	m.projectorsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "projectors_processed_total",
			Help:      "Total number of events processed by projectors.",
		},
		[]string{LabelService, LabelProjectorName, LabelEventType, LabelStatus},
	)

	m.projectorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "projector_duration_seconds",
			Help:      "Duration of projector event processing in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelService, LabelProjectorName},
	)

	m.relayDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "relay_deliveries_total",
			Help:      "Total number of event relay delivery attempts.",
		},
		[]string{LabelService, LabelTarget, LabelStatus},
	)

	m.relayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "relay_delivery_duration_seconds",
			Help:      "Duration of event relay deliveries in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelService, LabelTarget},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors by type.",
		},
		[]string{LabelService, LabelErrorType},
	)
}

// Collectors returns all Prometheus collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.commandsTotal,
		m.commandDuration,
		m.commandsInFlight,
		m.eventStoreOperationsTotal,
		m.eventStoreOperationDuration,
		m.eventsAppendedTotal,
		m.eventsLoadedTotal,
		m.projectorsProcessedTotal,
		m.projectorDuration,
		m.relayDeliveriesTotal,
		m.relayDuration,
		m.errorsTotal,
	}
}

// MustRegister registers all collectors with the default registry.
// Panics if registration fails.
func (m *Metrics) MustRegister() {
	prometheus.MustRegister(m.Collectors()...)
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(registry prometheus.Registerer) error {
	for _, collector := range m.Collectors() {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// CommandMiddleware returns middleware that records command metrics.
func (m *Metrics) CommandMiddleware() learnstream.Middleware {
	return func(next learnstream.MiddlewareFunc) learnstream.MiddlewareFunc {
		return func(ctx context.Context, cmd learnstream.Command) (learnstream.CommandResult, error) {
			cmdType := cmd.CommandType()

			m.commandsInFlight.WithLabelValues(m.serviceName, cmdType).Inc()
			defer m.commandsInFlight.WithLabelValues(m.serviceName, cmdType).Dec()

			start := time.Now()
			result, err := next(ctx, cmd)
			duration := time.Since(start)

			m.commandDuration.WithLabelValues(m.serviceName, cmdType).Observe(duration.Seconds())

			status := StatusSuccess
			if err != nil || result.IsError() {
				status = StatusError
				m.recordError(err, result)
			}

			m.commandsTotal.WithLabelValues(m.serviceName, cmdType, status).Inc()

			return result, err
		}
	}
}

func (m *Metrics) recordError(err error, result learnstream.CommandResult) {
	errorType := "unknown"
	if err != nil {
		errorType = errorTypeName(err)
	} else if result.Error != nil {
		errorType = errorTypeName(result.Error)
	}
	m.errorsTotal.WithLabelValues(m.serviceName, errorType).Inc()
}

// errorTypeName extracts the error type name based on sentinel errors.
func errorTypeName(err error) string {
	if err == nil {
		return "none"
	}

	switch {
	case errors.Is(err, learnstream.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, learnstream.ErrStreamNotFound):
		return "stream_not_found"
	case errors.Is(err, learnstream.ErrAggregateNotFound):
		return "aggregate_not_found"
	case errors.Is(err, learnstream.ErrHandlerNotFound):
		return "handler_not_found"
	case errors.Is(err, learnstream.ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, learnstream.ErrHandlerPanicked):
		return "handler_panicked"
	case errors.Is(err, learnstream.ErrSerializationFailed):
		return "serialization_failed"
	case errors.Is(err, learnstream.ErrEventTypeNotRegistered):
		return "event_type_not_registered"
	case errors.Is(err, learnstream.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, learnstream.ErrNilAggregate):
		return "nil_aggregate"
	case errors.Is(err, learnstream.ErrNilCommand):
		return "nil_command"
	case errors.Is(err, adapters.ErrEmptyStreamID):
		return "empty_stream_id"
	case errors.Is(err, adapters.ErrNoEvents):
		return "no_events"
	case errors.Is(err, adapters.ErrInvalidVersion):
		return "invalid_version"
	case errors.Is(err, adapters.ErrAdapterClosed):
		return "adapter_closed"
	default:
		return "unknown"
	}
}

// EventStoreMiddleware wraps an EventStoreAdapter with metrics.
type EventStoreMiddleware struct {
	adapter adapters.EventStoreAdapter
	metrics *Metrics
}

// WrapEventStore wraps an adapter with metrics collection.
func (m *Metrics) WrapEventStore(adapter adapters.EventStoreAdapter) *EventStoreMiddleware {
	return &EventStoreMiddleware{
		adapter: adapter,
		metrics: m,
	}
}

// Append stores events with metrics.
func (em *EventStoreMiddleware) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedVersion int64) ([]adapters.StoredEvent, error) {
	start := time.Now()
	stored, err := em.adapter.Append(ctx, streamID, events, expectedVersion)
	duration := time.Since(start)

	em.metrics.eventStoreOperationDuration.WithLabelValues(em.metrics.serviceName, OperationAppend).Observe(duration.Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
		em.metrics.errorsTotal.WithLabelValues(em.metrics.serviceName, "append_error").Inc()
	} else {
		for _, e := range events {
			em.metrics.eventsAppendedTotal.WithLabelValues(em.metrics.serviceName, e.Type).Inc()
		}
	}

	em.metrics.eventStoreOperationsTotal.WithLabelValues(em.metrics.serviceName, OperationAppend, status).Inc()

	return stored, err
}

// Load retrieves events with metrics.
func (em *EventStoreMiddleware) Load(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	start := time.Now()
	events, err := em.adapter.Load(ctx, streamID, fromVersion)
	duration := time.Since(start)

	em.metrics.eventStoreOperationDuration.WithLabelValues(em.metrics.serviceName, OperationLoad).Observe(duration.Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
		em.metrics.errorsTotal.WithLabelValues(em.metrics.serviceName, "load_error").Inc()
	} else {
		em.metrics.eventsLoadedTotal.WithLabelValues(em.metrics.serviceName).Add(float64(len(events)))
	}

	em.metrics.eventStoreOperationsTotal.WithLabelValues(em.metrics.serviceName, OperationLoad, status).Inc()

	return events, err
}

// GetStreamInfo returns stream metadata with metrics.
func (em *EventStoreMiddleware) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	start := time.Now()
	info, err := em.adapter.GetStreamInfo(ctx, streamID)
	duration := time.Since(start)

	em.metrics.eventStoreOperationDuration.WithLabelValues(em.metrics.serviceName, "get_stream_info").Observe(duration.Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
	}

	em.metrics.eventStoreOperationsTotal.WithLabelValues(em.metrics.serviceName, "get_stream_info", status).Inc()

	return info, err
}

// GetLastPosition returns the last global position with metrics.
func (em *EventStoreMiddleware) GetLastPosition(ctx context.Context) (uint64, error) {
	start := time.Now()
	pos, err := em.adapter.GetLastPosition(ctx)
	duration := time.Since(start)

	em.metrics.eventStoreOperationDuration.WithLabelValues(em.metrics.serviceName, "get_last_position").Observe(duration.Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
	}

	em.metrics.eventStoreOperationsTotal.WithLabelValues(em.metrics.serviceName, "get_last_position", status).Inc()

	return pos, err
}

// Initialize initializes the underlying adapter.
func (em *EventStoreMiddleware) Initialize(ctx context.Context) error {
	return em.adapter.Initialize(ctx)
}

// Close closes the underlying adapter.
func (em *EventStoreMiddleware) Close() error {
	return em.adapter.Close()
}

// ProjectorMiddleware wraps a projector with metrics.
type ProjectorMiddleware struct {
	projector learnstream.Projector
	metrics   *Metrics
}

// WrapProjector wraps a projector with metrics collection.
func (m *Metrics) WrapProjector(projector learnstream.Projector) *ProjectorMiddleware {
	return &ProjectorMiddleware{
		projector: projector,
		metrics:   m,
	}
}

// Name returns the projector name.
func (pm *ProjectorMiddleware) Name() string {
	return pm.projector.Name()
}

// HandledEvents returns the handled event types.
func (pm *ProjectorMiddleware) HandledEvents() []string {
	return pm.projector.HandledEvents()
}

// Handle processes an event with metrics.
func (pm *ProjectorMiddleware) Handle(ctx context.Context, event learnstream.Event) error {
	projName := pm.projector.Name()

	start := time.Now()
	err := pm.projector.Handle(ctx, event)
	duration := time.Since(start)

	pm.metrics.projectorDuration.WithLabelValues(pm.metrics.serviceName, projName).Observe(duration.Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
		pm.metrics.errorsTotal.WithLabelValues(pm.metrics.serviceName, "projector_error").Inc()
	}

	pm.metrics.projectorsProcessedTotal.WithLabelValues(pm.metrics.serviceName, projName, event.Type, status).Inc()

	return err
}

// RecordRelayDelivery records an event relay delivery attempt.
func (m *Metrics) RecordRelayDelivery(target string, duration time.Duration, success bool) {
	status := StatusSuccess
	if !success {
		status = StatusError
	}
	m.relayDeliveriesTotal.WithLabelValues(m.serviceName, target, status).Inc()
	m.relayDuration.WithLabelValues(m.serviceName, target).Observe(duration.Seconds())
}

// RecordError records a custom error.
func (m *Metrics) RecordError(errorType string) {
	m.errorsTotal.WithLabelValues(m.serviceName, errorType).Inc()
}
