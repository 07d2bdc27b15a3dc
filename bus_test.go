package learnstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type busTestCommand struct {
	CommandBase
	ID    string
	Fail  bool
	Panic bool
}

func (c busTestCommand) CommandType() string { return "busTestCommand" }
func (c busTestCommand) AggregateID() string { return c.ID }

func (c busTestCommand) Validate() error {
	if c.ID == "" {
		return NewValidationError(c.CommandType(), "id", "id is required")
	}
	return nil
}

func registerBusTestHandler(bus *CommandBus) *int {
	calls := new(int)
	RegisterGenericHandler(bus.Registry(), func(ctx context.Context, cmd busTestCommand) (CommandResult, error) {
		*calls++
		if cmd.Panic {
			panic("handler exploded")
		}
		if cmd.Fail {
			return NewErrorResult(ErrConcurrencyConflict), ErrConcurrencyConflict
		}
		return NewSuccessResult(cmd.ID, 1), nil
	})
	return calls
}

func TestCommandBus_Dispatch(t *testing.T) {
	t.Run("dispatches to registered handler", func(t *testing.T) {
		bus := NewCommandBus()
		calls := registerBusTestHandler(bus)

		result, err := bus.Dispatch(context.Background(), busTestCommand{ID: "1"})

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "1", result.AggregateID)
		assert.Equal(t, 1, *calls)
	})

	t.Run("nil command is rejected", func(t *testing.T) {
		bus := NewCommandBus()

		_, err := bus.Dispatch(context.Background(), nil)

		assert.ErrorIs(t, err, ErrNilCommand)
	})

	t.Run("unknown command type returns handler not found", func(t *testing.T) {
		bus := NewCommandBus()

		_, err := bus.Dispatch(context.Background(), busTestCommand{ID: "1"})

		assert.ErrorIs(t, err, ErrHandlerNotFound)
	})

	t.Run("closed bus rejects dispatch", func(t *testing.T) {
		bus := NewCommandBus()
		registerBusTestHandler(bus)
		require.NoError(t, bus.Close())

		_, err := bus.Dispatch(context.Background(), busTestCommand{ID: "1"})

		assert.ErrorIs(t, err, ErrCommandBusClosed)
	})
}

func TestCommandBus_Middleware(t *testing.T) {
	t.Run("validation middleware short-circuits invalid commands", func(t *testing.T) {
		bus := NewCommandBus(WithMiddleware(ValidationMiddleware()))
		calls := registerBusTestHandler(bus)

		_, err := bus.Dispatch(context.Background(), busTestCommand{})

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "id", validationErr.Field)
		assert.Equal(t, 0, *calls)
	})

	t.Run("recovery middleware converts panics to errors", func(t *testing.T) {
		bus := NewCommandBus(WithMiddleware(RecoveryMiddleware()))
		registerBusTestHandler(bus)

		result, err := bus.Dispatch(context.Background(), busTestCommand{ID: "1", Panic: true})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrHandlerPanicked)
		assert.False(t, result.Success)
	})

	t.Run("middleware wraps in registration order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next MiddlewareFunc) MiddlewareFunc {
				return func(ctx context.Context, cmd Command) (CommandResult, error) {
					order = append(order, name)
					return next(ctx, cmd)
				}
			}
		}

		bus := NewCommandBus(WithMiddleware(tag("outer"), tag("inner")))
		registerBusTestHandler(bus)

		_, err := bus.Dispatch(context.Background(), busTestCommand{ID: "1"})

		require.NoError(t, err)
		assert.Equal(t, []string{"outer", "inner"}, order)
	})

	t.Run("correlation id middleware seeds the context", func(t *testing.T) {
		var seen string
		capture := func(next MiddlewareFunc) MiddlewareFunc {
			return func(ctx context.Context, cmd Command) (CommandResult, error) {
				seen = CorrelationIDFromContext(ctx)
				return next(ctx, cmd)
			}
		}

		bus := NewCommandBus(WithMiddleware(
			CorrelationIDMiddleware(func() string { return "corr-1" }),
			capture,
		))
		registerBusTestHandler(bus)

		_, err := bus.Dispatch(context.Background(), busTestCommand{ID: "1"})

		require.NoError(t, err)
		assert.Equal(t, "corr-1", seen)
	})
}

func TestRetryMiddleware(t *testing.T) {
	t.Run("retries concurrency conflicts until the handler wins", func(t *testing.T) {
		bus := NewCommandBus(WithMiddleware(RetryMiddleware(ConcurrencyRetryConfig())))

		attempts := 0
		RegisterGenericHandler(bus.Registry(), func(ctx context.Context, cmd busTestCommand) (CommandResult, error) {
			attempts++
			if attempts < 3 {
				return NewErrorResult(ErrConcurrencyConflict), ErrConcurrencyConflict
			}
			return NewSuccessResult(cmd.ID, int64(attempts)), nil
		})

		result, err := bus.Dispatch(context.Background(), busTestCommand{ID: "1"})

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 3, attempts)
	})

	t.Run("surfaces the conflict when attempts are exhausted", func(t *testing.T) {
		bus := NewCommandBus(WithMiddleware(RetryMiddleware(ConcurrencyRetryConfig())))
		calls := registerBusTestHandler(bus)

		_, err := bus.Dispatch(context.Background(), busTestCommand{ID: "1", Fail: true})

		assert.ErrorIs(t, err, ErrConcurrencyConflict)
		assert.Equal(t, ConcurrencyRetryConfig().MaxAttempts, *calls)
	})

	t.Run("does not retry validation failures", func(t *testing.T) {
		bus := NewCommandBus(WithMiddleware(
			RetryMiddleware(ConcurrencyRetryConfig()),
			ValidationMiddleware(),
		))
		calls := registerBusTestHandler(bus)

		_, err := bus.Dispatch(context.Background(), busTestCommand{})

		require.Error(t, err)
		assert.Equal(t, 0, *calls)
	})
}
