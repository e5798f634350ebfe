package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records personaflow metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordStageExecution records a stage execution with its duration
	// and error status.
	RecordStageExecution(ctx context.Context, stage, mode string, duration time.Duration, err error)

	// RecordPipelineRun records a pipeline run completion.
	RecordPipelineRun(ctx context.Context, persona string, success bool, duration time.Duration)

	// RecordWorkflowRun records a workflow run reaching a terminal status.
	RecordWorkflowRun(ctx context.Context, persona, status string, duration time.Duration)

	// RecordTaskAttempt records one task attempt and whether it failed.
	RecordTaskAttempt(ctx context.Context, task string, attempt int, err error)

	// RecordInference records one model inference call with its latency
	// and token usage.
	RecordInference(ctx context.Context, stage, provider string, duration time.Duration, inputTokens, outputTokens int, err error)

	// RecordToolCall records one tool invocation from a reactive stage.
	RecordToolCall(ctx context.Context, stage, tool string, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	stageExecutions metric.Int64Counter
	stageLatency    metric.Float64Histogram
	stageErrors     metric.Int64Counter
	pipelineRuns    metric.Int64Counter
	pipelineLatency metric.Float64Histogram
	workflowRuns    metric.Int64Counter
	workflowLatency metric.Float64Histogram
	taskAttempts    metric.Int64Counter

	inferenceCalls   metric.Int64Counter
	inferenceLatency metric.Float64Histogram
	inferenceTokens  metric.Int64Counter
	inferenceErrors  metric.Int64Counter
	toolCalls        metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("personaflow")

	stageExecutions, err := meter.Int64Counter("personaflow.stage.executions",
		metric.WithDescription("Number of stage executions"),
	)
	if err != nil {
		return nil, err
	}

	stageLatency, err := meter.Float64Histogram("personaflow.stage.latency_ms",
		metric.WithDescription("Stage execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	stageErrors, err := meter.Int64Counter("personaflow.stage.errors",
		metric.WithDescription("Number of stage execution errors"),
	)
	if err != nil {
		return nil, err
	}

	pipelineRuns, err := meter.Int64Counter("personaflow.pipeline.runs",
		metric.WithDescription("Number of pipeline runs"),
	)
	if err != nil {
		return nil, err
	}

	pipelineLatency, err := meter.Float64Histogram("personaflow.pipeline.latency_ms",
		metric.WithDescription("Pipeline run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	workflowRuns, err := meter.Int64Counter("personaflow.workflow.runs",
		metric.WithDescription("Number of workflow runs by terminal status"),
	)
	if err != nil {
		return nil, err
	}

	workflowLatency, err := meter.Float64Histogram("personaflow.workflow.latency_ms",
		metric.WithDescription("Workflow run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	taskAttempts, err := meter.Int64Counter("personaflow.task.attempts",
		metric.WithDescription("Number of workflow task attempts"),
	)
	if err != nil {
		return nil, err
	}

	inferenceCalls, err := meter.Int64Counter("personaflow.inference.calls",
		metric.WithDescription("Number of model inference calls"),
	)
	if err != nil {
		return nil, err
	}

	inferenceLatency, err := meter.Float64Histogram("personaflow.inference.latency_ms",
		metric.WithDescription("Model inference call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	inferenceTokens, err := meter.Int64Counter("personaflow.inference.tokens",
		metric.WithDescription("Tokens consumed by inference calls, by direction"),
	)
	if err != nil {
		return nil, err
	}

	inferenceErrors, err := meter.Int64Counter("personaflow.inference.errors",
		metric.WithDescription("Number of failed model inference calls"),
	)
	if err != nil {
		return nil, err
	}

	toolCalls, err := meter.Int64Counter("personaflow.tool.calls",
		metric.WithDescription("Number of tool invocations from reactive stages"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		stageExecutions: stageExecutions,
		stageLatency:    stageLatency,
		stageErrors:     stageErrors,
		pipelineRuns:    pipelineRuns,
		pipelineLatency: pipelineLatency,
		workflowRuns:    workflowRuns,
		workflowLatency: workflowLatency,
		taskAttempts:    taskAttempts,

		inferenceCalls:   inferenceCalls,
		inferenceLatency: inferenceLatency,
		inferenceTokens:  inferenceTokens,
		inferenceErrors:  inferenceErrors,
		toolCalls:        toolCalls,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordStageExecution records a stage execution.
func (m *otelMetrics) RecordStageExecution(ctx context.Context, stage, mode string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("stage", stage),
		attribute.String("mode", mode),
	}

	m.stageExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.stageLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.stageErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordPipelineRun records a pipeline run.
func (m *otelMetrics) RecordPipelineRun(ctx context.Context, persona string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("persona", persona),
		attribute.Bool("success", success),
	}
	m.pipelineRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.pipelineLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordWorkflowRun records a workflow run's terminal status.
func (m *otelMetrics) RecordWorkflowRun(ctx context.Context, persona, status string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("persona", persona),
		attribute.String("status", status),
	}
	m.workflowRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.workflowLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordTaskAttempt records one task attempt.
func (m *otelMetrics) RecordTaskAttempt(ctx context.Context, task string, attempt int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("task", task),
		attribute.Int("attempt", attempt),
		attribute.Bool("failed", err != nil),
	}
	m.taskAttempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInference records one model inference call. Token counts are
// reported as separate input/output datapoints when the provider
// supplies them.
func (m *otelMetrics) RecordInference(ctx context.Context, stage, provider string, duration time.Duration, inputTokens, outputTokens int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("stage", stage),
		attribute.String("provider", provider),
	}

	m.inferenceCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.inferenceLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if inputTokens > 0 {
		m.inferenceTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("provider", provider),
			attribute.String("direction", "input"),
		))
	}
	if outputTokens > 0 {
		m.inferenceTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("provider", provider),
			attribute.String("direction", "output"),
		))
	}

	if err != nil {
		m.inferenceErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordToolCall records one tool invocation.
func (m *otelMetrics) RecordToolCall(ctx context.Context, stage, tool string, err error) {
	m.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("tool", tool),
		attribute.Bool("failed", err != nil),
	))
}
