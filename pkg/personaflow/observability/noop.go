package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordStageExecution does nothing.
func (NoopMetrics) RecordStageExecution(_ context.Context, _, _ string, _ time.Duration, _ error) {}

// RecordPipelineRun does nothing.
func (NoopMetrics) RecordPipelineRun(_ context.Context, _ string, _ bool, _ time.Duration) {}

// RecordWorkflowRun does nothing.
func (NoopMetrics) RecordWorkflowRun(_ context.Context, _, _ string, _ time.Duration) {}

// RecordTaskAttempt does nothing.
func (NoopMetrics) RecordTaskAttempt(_ context.Context, _ string, _ int, _ error) {}

// RecordInference does nothing.
func (NoopMetrics) RecordInference(_ context.Context, _, _ string, _ time.Duration, _, _ int, _ error) {
}

// RecordToolCall does nothing.
func (NoopMetrics) RecordToolCall(_ context.Context, _, _ string, _ error) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
var noopSpan = noop.Span{}

// StartWorkflowSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartWorkflowSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartTaskSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartTaskSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartPipelineSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartPipelineSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartStageSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartStageSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
