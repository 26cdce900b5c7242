// Package protocol defines the contract between the executor and the
// pluggable step handlers.
package protocol

import (
	"context"

	"github.com/stepline/stepline/pkg/models"
)

// Result is the structured outcome of one handler invocation. Handlers never
// return Go errors to the executor; any internal failure is converted to a
// Result with Success false.
type Result struct {
	Success    bool   `json:"success"`
	Output     any    `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// Failure builds a failed result from an error message.
func Failure(message string) Result {
	return Result{Success: false, Error: message}
}

// Handler performs the actual work of one step type. Execute receives the
// step's config with all placeholders already resolved, plus the execution
// context for handlers that evaluate expressions over prior outputs.
// DurationMS is measured by the handler around its own external work.
type Handler interface {
	// ID returns the step type tag this handler serves.
	ID() string

	// Name returns the human-readable name for this step type.
	Name() string

	// Execute runs the step. Implementations must not panic and must not
	// return partial Output on success=false except where the step's
	// semantics call for it (the HTTP handler keeps the response around on
	// non-2xx statuses).
	Execute(ctx context.Context, config map[string]any, execCtx *models.ExecutionContext) Result

	// Schema returns the JSON schema describing this handler's config.
	Schema() map[string]any
}
