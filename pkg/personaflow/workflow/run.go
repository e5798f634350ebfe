// Package workflow orchestrates persona pipeline invocations: each run
// executes the security gate and then the persona pipeline as two ordered
// tasks with per-task retry policy, a run-level timeout, and batch and
// periodic execution modes.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/personaflow/pkg/personaflow"
)

// Status is a workflow run's lifecycle state.
type Status string

// Run states. Completed, failed, and cancelled are sink states.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a sink state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Task names executed by every run, in order.
const (
	TaskSecurityCheck = "security-check"
	TaskGetResponse   = "get-response"
)

// Task tracks one workflow task's execution. A Task is owned exclusively
// by the orchestrator for the duration of its run; it is never shared
// across concurrent runs.
type Task struct {
	Name        string
	Attempts    int
	MaxAttempts int
	RetryDelay  time.Duration
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time
}

// Run is one orchestrated execution: security gate plus persona pipeline.
type Run struct {
	ID      string
	Persona personaflow.PersonaType
	Query   string
	Timeout time.Duration

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	Tasks       []*Task

	mu     sync.Mutex
	status Status
	output string
	err    error
}

// newRun creates a pending run.
func newRun(persona personaflow.PersonaType, query string, timeout time.Duration) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Persona:   persona,
		Query:     query,
		Timeout:   timeout,
		CreatedAt: time.Now(),
		status:    StatusPending,
	}
}

// Status returns the run's current state.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Output returns the terminal output, valid once completed.
func (r *Run) Output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output
}

// Err returns the terminal error, if any.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// setRunning transitions pending -> running.
func (r *Run) setRunning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusPending {
		return
	}
	r.status = StatusRunning
	r.StartedAt = time.Now()
}

// finish transitions to a terminal state. Terminal states are sinks:
// a second finish is a no-op.
func (r *Run) finish(status Status, output string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	r.status = status
	r.output = output
	r.err = err
	r.CompletedAt = time.Now()
}

// ErrWorkflowTimeout indicates a run exceeded its time budget.
var ErrWorkflowTimeout = errors.New("workflow timed out")

// TimeoutError carries the run and budget that were exceeded.
type TimeoutError struct {
	RunID   string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run %s exceeded %s budget", e.RunID, e.Timeout)
}

// Unwrap returns ErrWorkflowTimeout for errors.Is support.
func (e *TimeoutError) Unwrap() error {
	return ErrWorkflowTimeout
}

// Machine-readable error kinds surfaced to callers.
const (
	KindSecurityRejected = "security_rejected"
	KindWorkflowTimeout  = "workflow_timeout"
	KindTransient        = "transient_inference"
	KindFatal            = "fatal_inference"
	KindConfiguration    = "configuration"
	KindCancelled        = "cancelled"
)

// Result is the caller-visible outcome of one run: always a terminal
// status and, on failure, an error kind plus human-readable message.
// Provider stack traces never reach the caller.
type Result struct {
	RunID      string
	Persona    personaflow.PersonaType
	Status     Status
	Output     string
	ErrKind    string
	ErrMessage string
}

// errorKind classifies a terminal error.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, personaflow.ErrSecurityRejected):
		return KindSecurityRejected
	case errors.Is(err, ErrWorkflowTimeout):
		return KindWorkflowTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	}
	var cfgErr *personaflow.ConfigurationError
	if errors.As(err, &cfgErr) {
		return KindConfiguration
	}
	if personaflow.IsRetryable(err) {
		// Retry budget exhausted; the last error was still transient.
		return KindTransient
	}
	return KindFatal
}
