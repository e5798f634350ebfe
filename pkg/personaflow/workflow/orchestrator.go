package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/randalmurphal/personaflow/pkg/personaflow"
	"github.com/randalmurphal/personaflow/pkg/personaflow/config"
	"github.com/randalmurphal/personaflow/pkg/personaflow/llm"
	"github.com/randalmurphal/personaflow/pkg/personaflow/observability"
	"github.com/randalmurphal/personaflow/pkg/personaflow/tools"
	"github.com/randalmurphal/personaflow/pkg/personaflow/workflow/runlog"
	"go.opentelemetry.io/otel/trace"
)

// ClientFactory produces a fresh inference client for one run.
// Each run gets its own client so no state leaks across concurrent runs.
type ClientFactory func(cfg llm.ModelConfig) (llm.Client, error)

// Orchestrator executes workflow runs against one model configuration.
// It is safe for concurrent use; every run owns its tasks, clients, and
// pipeline instances.
type Orchestrator struct {
	modelConfig llm.ModelConfig
	settings    config.Settings
	clients     ClientFactory
	searchTool  tools.Tool

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	tracing bool
	store   runlog.Store
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSettings overrides the engine defaults (3 attempts, 5s retry
// delay, 300s workflow timeout, concurrency 4).
func WithSettings(s config.Settings) Option {
	return func(o *Orchestrator) { o.settings = s }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables metrics recording.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracing enables span creation.
func WithTracing(sm observability.SpanManager) Option {
	return func(o *Orchestrator) {
		if sm != nil {
			o.spans = sm
			o.tracing = true
		}
	}
}

// WithStore persists run history. Saves are best-effort: a store failure
// is logged, never fails the run.
func WithStore(s runlog.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithSearchTool supplies the search capability for researcher runs.
func WithSearchTool(t tools.Tool) Option {
	return func(o *Orchestrator) { o.searchTool = t }
}

// WithClientFactory overrides how inference clients are produced.
// The default is llm.Bind.
func WithClientFactory(f ClientFactory) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.clients = f
		}
	}
}

// New creates an orchestrator bound to the given model configuration.
// The configuration is validated up front; a bad provider or empty model
// id aborts before any workflow starts.
func New(modelConfig llm.ModelConfig, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		modelConfig: modelConfig,
		settings:    config.DefaultSettings(),
		clients:     llm.Bind,
		logger:      slog.Default(),
		metrics:     observability.NoopMetrics{},
		spans:       observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := modelConfig.Validate(); err != nil {
		return nil, &personaflow.ConfigurationError{Component: "orchestrator", Err: err}
	}
	return o, nil
}

// Execute runs {security gate -> persona pipeline} for one query.
//
// Construction failures (bad persona, unbindable model) return an error
// before the run starts. Everything after that is reported through the
// Result: a terminal status plus, on failure, an error kind and message.
func (o *Orchestrator) Execute(ctx context.Context, persona personaflow.PersonaType, query, queryContext string) (*Result, error) {
	run := newRun(persona, query, o.settings.WorkflowTimeout)

	gateClient, err := o.clients(o.modelConfig)
	if err != nil {
		return nil, &personaflow.ConfigurationError{Component: "security gate", Err: err}
	}
	gate, err := personaflow.NewSecurityGate(gateClient, o.modelConfig)
	if err != nil {
		return nil, err
	}

	pipelineClient, err := o.clients(o.modelConfig)
	if err != nil {
		return nil, &personaflow.ConfigurationError{Component: "pipeline", Err: err}
	}
	var personaOpts []personaflow.PersonaOption
	if o.searchTool != nil {
		personaOpts = append(personaOpts,
			personaflow.WithSearchTool(o.searchTool),
			personaflow.WithToolLoopLimit(o.settings.ToolLoopLimit))
	}
	pipeline, err := personaflow.NewPersonaPipeline(persona, pipelineClient, o.modelConfig, personaOpts...)
	if err != nil {
		return nil, err
	}

	run.setRunning()
	o.saveRecord(run)
	observability.LogWorkflowStart(o.logger, run.ID, string(persona))
	done := observability.TimedOperation()

	runCtx, cancel := context.WithTimeout(ctx, run.Timeout)
	defer cancel()

	var spanCtx context.Context = runCtx
	var runSpan trace.Span
	if o.tracing {
		spanCtx, runSpan = o.spans.StartWorkflowSpan(runCtx, string(persona), run.ID)
	}

	runOpts := []personaflow.RunOption{
		personaflow.WithLogger(o.logger),
		personaflow.WithMetrics(o.metrics),
		personaflow.WithRunID(run.ID),
	}
	if o.tracing {
		runOpts = append(runOpts, personaflow.WithTracing(o.spans))
	}

	// Task 1: the security gate always completes before the response
	// task begins.
	_, err = o.runTask(spanCtx, run, TaskSecurityCheck, func(taskCtx context.Context) (string, error) {
		passed, checkErr := gate.Check(taskCtx, query, runOpts...)
		if checkErr != nil {
			return "", checkErr
		}
		if !passed {
			return "", personaflow.ErrSecurityRejected
		}
		return "passed", nil
	})
	if err != nil {
		return o.conclude(ctx, run, runSpan, "", err, done), nil
	}

	// Task 2: the persona pipeline.
	output, err := o.runTask(spanCtx, run, TaskGetResponse, func(taskCtx context.Context) (string, error) {
		pipelineRun, runErr := pipeline.Run(taskCtx, query, queryContext, runOpts...)
		if runErr != nil {
			return "", runErr
		}
		return pipelineRun.Output, nil
	})
	return o.conclude(ctx, run, runSpan, output, err, done), nil
}

// runTask executes one task with the retry policy: up to MaxAttempts
// attempts with a fixed delay, retrying only transient inference
// failures. Fatal errors and security rejection abort immediately
// without consuming remaining attempts.
func (o *Orchestrator) runTask(ctx context.Context, run *Run, name string, fn func(context.Context) (string, error)) (string, error) {
	task := &Task{
		Name:        name,
		MaxAttempts: o.settings.MaxAttempts,
		RetryDelay:  o.settings.RetryDelay,
		StartedAt:   time.Now(),
	}
	run.Tasks = append(run.Tasks, task)

	var taskCtx context.Context = ctx
	var taskSpan trace.Span
	if o.tracing {
		taskCtx, taskSpan = o.spans.StartTaskSpan(ctx, name)
	}

	var lastErr error
	for attempt := 1; attempt <= task.MaxAttempts; attempt++ {
		task.Attempts = attempt
		observability.LogTaskStart(o.logger, run.ID, name, attempt)

		out, err := fn(taskCtx)
		o.metrics.RecordTaskAttempt(taskCtx, name, attempt, err)
		if err == nil {
			task.CompletedAt = time.Now()
			if o.tracing {
				o.spans.EndSpanWithError(taskSpan, nil)
			}
			return out, nil
		}

		lastErr = err
		if !personaflow.IsRetryable(err) || attempt == task.MaxAttempts {
			break
		}

		observability.LogTaskRetry(o.logger, run.ID, name, attempt, task.RetryDelay, err)
		select {
		case <-time.After(task.RetryDelay):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = task.MaxAttempts
		}
	}

	task.Err = lastErr
	task.CompletedAt = time.Now()
	observability.LogTaskError(o.logger, run.ID, name, task.Attempts, lastErr)
	if o.tracing {
		o.spans.EndSpanWithError(taskSpan, lastErr)
	}
	return "", lastErr
}

// conclude moves the run to its terminal state and builds the Result.
// The caller's context distinguishes external cancellation from the
// run's own timeout.
func (o *Orchestrator) conclude(callerCtx context.Context, run *Run, runSpan trace.Span, output string, err error, done func() float64) *Result {
	status := StatusCompleted
	if err != nil {
		switch {
		case errors.Is(callerCtx.Err(), context.Canceled):
			status = StatusCancelled
			err = context.Canceled
		case errors.Is(callerCtx.Err(), context.DeadlineExceeded):
			// The caller's own deadline expired, not the run budget.
			status = StatusCancelled
			err = context.DeadlineExceeded
		case errors.Is(err, context.DeadlineExceeded):
			status = StatusFailed
			err = &TimeoutError{RunID: run.ID, Timeout: run.Timeout}
		default:
			status = StatusFailed
		}
	}
	run.finish(status, output, err)

	durationMs := done()
	o.metrics.RecordWorkflowRun(context.Background(), string(run.Persona), string(status),
		time.Duration(durationMs)*time.Millisecond)
	observability.LogWorkflowComplete(o.logger, run.ID, string(status), durationMs)
	if o.tracing {
		o.spans.EndSpanWithError(runSpan, err)
	}
	o.saveRecord(run)

	result := &Result{
		RunID:   run.ID,
		Persona: run.Persona,
		Status:  status,
		Output:  output,
	}
	if err != nil {
		result.ErrKind = errorKind(err)
		result.ErrMessage = err.Error()
	}
	if status == StatusCancelled {
		result.ErrKind = KindCancelled
	}
	return result
}

// saveRecord persists the run's current state, best-effort.
func (o *Orchestrator) saveRecord(run *Run) {
	if o.store == nil {
		return
	}
	rec := runlog.Record{
		RunID:       run.ID,
		Persona:     string(run.Persona),
		Query:       run.Query,
		Status:      string(run.Status()),
		CreatedAt:   run.CreatedAt,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
	for _, task := range run.Tasks {
		rec.Attempts += task.Attempts
	}
	if err := run.Err(); err != nil {
		rec.ErrKind = errorKind(err)
		rec.ErrMessage = err.Error()
	}
	if err := o.store.Save(rec); err != nil {
		observability.LogRunlogError(o.logger, run.ID, err)
	}
}
