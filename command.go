package learnstream

import (
	"context"
)

// Command represents an intent to change state in the system.
// Commands are the write side of CQRS and are validated before execution.
type Command interface {
	// CommandType returns the type identifier for this command (e.g., "CreateCourse").
	CommandType() string

	// Validate checks if the command is valid.
	// Returns nil if valid, or an error describing validation failures.
	Validate() error
}

// AggregateCommand is a command that targets a specific aggregate.
type AggregateCommand interface {
	Command

	// AggregateID returns the ID of the aggregate this command targets.
	// Returns empty string for commands that create new aggregates.
	AggregateID() string
}

// CommandBase provides a default partial implementation of Command.
// Embed this struct in your command types to get common functionality.
type CommandBase struct {
	// CommandID is an optional unique identifier for this command instance.
	CommandID string `json:"commandId,omitempty"`

	// CorrelationID links related commands and events.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID identifies the event or command that caused this command.
	CausationID string `json:"causationId,omitempty"`
}

// WithCommandID returns a copy of CommandBase with the command ID set.
func (c CommandBase) WithCommandID(id string) CommandBase {
	c.CommandID = id
	return c
}

// WithCorrelationID returns a copy of CommandBase with the correlation ID set.
func (c CommandBase) WithCorrelationID(id string) CommandBase {
	c.CorrelationID = id
	return c
}

// WithCausationID returns a copy of CommandBase with the causation ID set.
func (c CommandBase) WithCausationID(id string) CommandBase {
	c.CausationID = id
	return c
}

// GetCommandID returns the command ID.
func (c CommandBase) GetCommandID() string {
	return c.CommandID
}

// GetCorrelationID returns the correlation ID.
func (c CommandBase) GetCorrelationID() string {
	return c.CorrelationID
}

// GetCausationID returns the causation ID.
func (c CommandBase) GetCausationID() string {
	return c.CausationID
}

// CommandResult represents the result of command execution.
type CommandResult struct {
	// Success indicates whether the command executed successfully.
	Success bool

	// AggregateID is the ID of the aggregate affected by the command.
	// For create commands, this is the ID of the newly created aggregate.
	AggregateID string

	// Version is the new version of the aggregate after command execution.
	Version int64

	// Data contains any additional result data.
	Data interface{}

	// Error contains the error if the command failed.
	Error error
}

// NewSuccessResult creates a successful CommandResult.
func NewSuccessResult(aggregateID string, version int64) CommandResult {
	return CommandResult{
		Success:     true,
		AggregateID: aggregateID,
		Version:     version,
	}
}

// NewSuccessResultWithData creates a successful CommandResult with additional data.
func NewSuccessResultWithData(aggregateID string, version int64, data interface{}) CommandResult {
	return CommandResult{
		Success:     true,
		AggregateID: aggregateID,
		Version:     version,
		Data:        data,
	}
}

// NewErrorResult creates a failed CommandResult.
func NewErrorResult(err error) CommandResult {
	return CommandResult{
		Success: false,
		Error:   err,
	}
}

// IsSuccess returns true if the command executed successfully.
func (r CommandResult) IsSuccess() bool {
	return r.Success && r.Error == nil
}

// IsError returns true if the command failed.
func (r CommandResult) IsError() bool {
	return !r.Success || r.Error != nil
}

// CommandContext carries command execution context through the middleware chain.
type CommandContext struct {
	// Context is the standard Go context.
	Context context.Context

	// Command is the command being executed.
	Command Command

	// Result is the command execution result (set by handler).
	Result CommandResult

	// Metadata contains additional context data that can be set by middleware.
	Metadata map[string]interface{}
}

// NewCommandContext creates a new CommandContext.
func NewCommandContext(ctx context.Context, cmd Command) *CommandContext {
	return &CommandContext{
		Context:  ctx,
		Command:  cmd,
		Metadata: make(map[string]interface{}),
	}
}

// Set stores a value in the context metadata.
func (c *CommandContext) Set(key string, value interface{}) {
	c.Metadata[key] = value
}

// Get retrieves a value from the context metadata.
func (c *CommandContext) Get(key string) (interface{}, bool) {
	v, ok := c.Metadata[key]
	return v, ok
}

// GetString retrieves a string value from the context metadata.
func (c *CommandContext) GetString(key string) string {
	if v, ok := c.Metadata[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetResult sets the command execution result.
func (c *CommandContext) SetResult(result CommandResult) {
	c.Result = result
}

// SetSuccess sets a successful result.
func (c *CommandContext) SetSuccess(aggregateID string, version int64) {
	c.Result = NewSuccessResult(aggregateID, version)
}

// SetError sets an error result.
func (c *CommandContext) SetError(err error) {
	c.Result = NewErrorResult(err)
}
