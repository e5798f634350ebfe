package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the personaflow tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("personaflow")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartWorkflowSpan starts a span for an orchestrated workflow run.
	StartWorkflowSpan(ctx context.Context, persona, runID string) (context.Context, trace.Span)

	// StartTaskSpan starts a span for one workflow task.
	// The task span should be a child of the workflow span.
	StartTaskSpan(ctx context.Context, task string) (context.Context, trace.Span)

	// StartPipelineSpan starts a span for a pipeline run.
	StartPipelineSpan(ctx context.Context, persona, runID string) (context.Context, trace.Span)

	// StartStageSpan starts a span for a stage execution.
	StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartWorkflowSpan starts a span for an orchestrated workflow run.
func (m *otelSpanManager) StartWorkflowSpan(ctx context.Context, persona, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "personaflow.workflow",
		trace.WithAttributes(
			attribute.String("persona", persona),
			attribute.String("run.id", runID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartTaskSpan starts a span for one workflow task.
func (m *otelSpanManager) StartTaskSpan(ctx context.Context, task string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "personaflow.task."+task,
		trace.WithAttributes(
			attribute.String("task", task),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartPipelineSpan starts a span for a pipeline run.
func (m *otelSpanManager) StartPipelineSpan(ctx context.Context, persona, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "personaflow.pipeline",
		trace.WithAttributes(
			attribute.String("persona", persona),
			attribute.String("run.id", runID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartStageSpan starts a span for a stage execution.
func (m *otelSpanManager) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "personaflow.stage."+stage,
		trace.WithAttributes(
			attribute.String("stage", stage),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
