// Package tool implements the function-calling subsystem: named capabilities
// with declared JSON argument schemas that agents may invoke mid-reasoning.
// Tools return opaque string results (by convention serialized JSON) which
// the invoking agent's own reasoning interprets.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/travelmesh/internal/util"
)

// Tool is a named capability exposed to a model for function calling.
//
// Implementations should be safe for concurrent use; one registry instance is
// shared by all in-flight conversations.
type Tool interface {
	// Name returns the unique identifier used in function-call declarations
	// and dispatch (snake_case recommended).
	Name() string

	// Description is shown to the model to guide tool selection.
	Description() string

	// Parameters returns a JSON schema describing the accepted arguments.
	Parameters() map[string]any

	// Call executes the tool. The result is an opaque string, by convention
	// serialized JSON; errors are contained by the caller, never fatal.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// ValidationError re-exports the argument validation failure type.
type ValidationError = util.ValidationError

// Error codes attached to ToolError for categorization.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// ToolError represents a failure during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}
