package personaflow

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/personaflow/pkg/personaflow/llm"
)

// ErrSecurityRejected is the explicit terminal outcome for a query that
// failed the security gate. It is not retried.
var ErrSecurityRejected = errors.New("security check rejected the query")

// ConfigurationError indicates a construction-time fault: an invalid
// persona, a stage sequence whose field flow does not line up, or a bad
// model binding. It surfaces before any run executes.
type ConfigurationError struct {
	// Component names the part being constructed (e.g., "pipeline").
	Component string
	// Err is the underlying validation failure.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configure %s: %v", e.Component, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ContractError indicates the model violated a stage's output contract:
// a missing output field, unparseable structured output, or a value
// outside the declared domain. Contract violations are fatal, never
// retried and never silently coerced.
type ContractError struct {
	// Stage is the stage whose contract was violated.
	Stage string
	// Detail describes the violation.
	Detail string
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	return fmt.Sprintf("stage %s: output contract violated: %s", e.Stage, e.Detail)
}

// ToolLoopError indicates a reactive tool loop reached its iteration
// bound without the model emitting a final answer. Fatal.
type ToolLoopError struct {
	// Stage is the reactive stage that exhausted its loop.
	Stage string
	// Iterations is the configured bound.
	Iterations int
}

// Error implements the error interface.
func (e *ToolLoopError) Error() string {
	return fmt.Sprintf("stage %s: tool loop exhausted after %d iterations", e.Stage, e.Iterations)
}

// IsRetryable reports whether err is a transient inference failure
// eligible for the orchestrator's retry policy. Contract violations,
// tool loop exhaustion, security rejection, and configuration errors
// are all non-retryable.
func IsRetryable(err error) bool {
	return llm.IsTransient(err)
}
