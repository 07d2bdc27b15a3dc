package learnstream

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// ValidationMiddleware validates commands before they reach the handler.
// If validation fails, the command is not dispatched.
func ValidationMiddleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			if err := cmd.Validate(); err != nil {
				return NewErrorResult(err), err
			}
			return next(ctx, cmd)
		}
	}
}

// RecoveryMiddleware recovers from panics in handlers and returns them as errors.
func RecoveryMiddleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (result CommandResult, err error) {
			defer func() {
				if r := recover(); r != nil {
					panicErr := NewPanicError(cmd.CommandType(), r, string(debug.Stack()))
					result = NewErrorResult(panicErr)
					err = panicErr
				}
			}()
			return next(ctx, cmd)
		}
	}
}

// LoggingMiddleware logs command execution.
type LoggingMiddleware struct {
	logger Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware(logger Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// Middleware returns the middleware function.
func (m *LoggingMiddleware) Middleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			start := time.Now()

			m.logger.Info("Dispatching command",
				"type", cmd.CommandType(),
			)

			result, err := next(ctx, cmd)

			duration := time.Since(start)

			if err != nil {
				m.logger.Error("Command failed",
					"type", cmd.CommandType(),
					"duration", duration,
					"error", err,
				)
			} else if result.IsError() {
				m.logger.Warn("Command returned error result",
					"type", cmd.CommandType(),
					"duration", duration,
					"error", result.Error,
				)
			} else {
				m.logger.Info("Command completed",
					"type", cmd.CommandType(),
					"duration", duration,
					"aggregateId", result.AggregateID,
					"version", result.Version,
				)
			}

			return result, err
		}
	}
}

// TimeoutMiddleware adds a timeout to command execution.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, cmd)
		}
	}
}

// RetryConfig configures RetryMiddleware.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first one).
	MaxAttempts int

	// InitialDelay is the initial delay between retries.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration

	// Multiplier is the factor by which the delay increases on each retry.
	Multiplier float64

	// ShouldRetry determines if an error should be retried.
	// If nil, all errors are retried.
	ShouldRetry func(err error) bool
}

// DefaultRetryConfig returns a default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		ShouldRetry:  nil,
	}
}

// ConcurrencyRetryConfig returns a retry configuration that only retries
// optimistic concurrency conflicts. Losers of a concurrent write race
// reload and reapply; other failures surface immediately.
func ConcurrencyRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.ShouldRetry = func(err error) bool {
		return errors.Is(err, ErrConcurrencyConflict)
	}
	return cfg
}

// RetryMiddleware creates middleware that retries failed commands.
func RetryMiddleware(config RetryConfig) Middleware {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 1.0
	}

	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			var lastResult CommandResult
			var lastErr error
			delay := config.InitialDelay

			for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
				lastResult, lastErr = next(ctx, cmd)

				if lastErr == nil && lastResult.IsSuccess() {
					return lastResult, nil
				}

				if attempt == config.MaxAttempts {
					break
				}

				errToCheck := lastErr
				if errToCheck == nil && lastResult.Error != nil {
					errToCheck = lastResult.Error
				}

				if config.ShouldRetry != nil && !config.ShouldRetry(errToCheck) {
					break
				}

				select {
				case <-ctx.Done():
					return NewErrorResult(ctx.Err()), ctx.Err()
				case <-time.After(delay):
				}

				delay = time.Duration(float64(delay) * config.Multiplier)
				if delay > config.MaxDelay {
					delay = config.MaxDelay
				}
			}

			return lastResult, lastErr
		}
	}
}

// MetricsCollector records command execution metrics.
type MetricsCollector interface {
	// RecordCommand records a command execution.
	RecordCommand(cmdType string, duration time.Duration, success bool, err error)
}

// MetricsMiddleware creates middleware that records metrics.
func MetricsMiddleware(collector MetricsCollector) Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			start := time.Now()
			result, err := next(ctx, cmd)
			duration := time.Since(start)

			success := err == nil && result.IsSuccess()
			recordErr := err
			if recordErr == nil && result.Error != nil {
				recordErr = result.Error
			}

			collector.RecordCommand(cmd.CommandType(), duration, success, recordErr)

			return result, err
		}
	}
}

// correlationIDKey is the context key for correlation ID.
type correlationIDKey struct{}

// CorrelationIDFromContext returns the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// CorrelationIDMiddleware creates middleware that propagates correlation IDs.
func CorrelationIDMiddleware(generator func() string) Middleware {
	if generator == nil {
		generator = func() string {
			return fmt.Sprintf("%d", time.Now().UnixNano())
		}
	}

	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			if CorrelationIDFromContext(ctx) != "" {
				return next(ctx, cmd)
			}

			var correlationID string
			if base, ok := cmd.(interface{ GetCorrelationID() string }); ok {
				correlationID = base.GetCorrelationID()
			}

			if correlationID == "" {
				correlationID = generator()
			}

			ctx = context.WithValue(ctx, correlationIDKey{}, correlationID)
			return next(ctx, cmd)
		}
	}
}
