// Package observability provides structured logging, metrics, and
// distributed tracing for personaflow: pipeline runs, stage executions,
// workflow tasks, and retries.
//
// Logging uses slog (Go stdlib); metrics and tracing use OpenTelemetry.
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger.
// Returns a new logger with run_id, stage, and attempt fields.
func EnrichLogger(logger *slog.Logger, runID, stage string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("stage", stage),
		slog.Int("attempt", attempt),
	)
}

// LogPipelineStart logs the start of a pipeline run.
func LogPipelineStart(logger *slog.Logger, runID, persona string) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run starting",
		slog.String("run_id", runID),
		slog.String("persona", persona),
	)
}

// LogPipelineComplete logs successful pipeline completion.
func LogPipelineComplete(logger *slog.Logger, runID string, durationMs float64, stageCount int) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("stages_executed", stageCount),
	)
}

// LogPipelineError logs pipeline run failure.
func LogPipelineError(logger *slog.Logger, runID string, err error, durationMs float64, lastStage string) {
	if logger == nil {
		return
	}
	logger.Error("pipeline run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_stage", lastStage),
	)
}

// LogStageStart logs stage execution start.
func LogStageStart(logger *slog.Logger, stage, mode string) {
	if logger == nil {
		return
	}
	logger.Debug("stage starting",
		slog.String("stage", stage),
		slog.String("mode", mode),
	)
}

// LogStageComplete logs successful stage completion.
func LogStageComplete(logger *slog.Logger, stage string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("stage completed",
		slog.String("stage", stage),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogStageError logs stage execution error.
func LogStageError(logger *slog.Logger, stage string, err error) {
	if logger == nil {
		return
	}
	logger.Error("stage failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// LogInferenceComplete logs one model call's latency and token usage.
func LogInferenceComplete(logger *slog.Logger, stage, model string, durationMs float64, inputTokens, outputTokens int) {
	if logger == nil {
		return
	}
	logger.Debug("inference completed",
		slog.String("stage", stage),
		slog.String("model", model),
		slog.Float64("duration_ms", durationMs),
		slog.Int("input_tokens", inputTokens),
		slog.Int("output_tokens", outputTokens),
	)
}

// LogInferenceError logs a failed model call.
func LogInferenceError(logger *slog.Logger, stage string, err error) {
	if logger == nil {
		return
	}
	logger.Error("inference failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// LogToolCall logs one tool invocation from a reactive stage.
func LogToolCall(logger *slog.Logger, stage, tool string, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("tool call failed",
			slog.String("stage", stage),
			slog.String("tool", tool),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("tool call completed",
		slog.String("stage", stage),
		slog.String("tool", tool),
	)
}

// LogWorkflowStart logs the start of a workflow run.
func LogWorkflowStart(logger *slog.Logger, runID, persona string) {
	if logger == nil {
		return
	}
	logger.Info("workflow run starting",
		slog.String("run_id", runID),
		slog.String("persona", persona),
	)
}

// LogWorkflowComplete logs workflow run completion with terminal status.
func LogWorkflowComplete(logger *slog.Logger, runID, status string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("workflow run finished",
		slog.String("run_id", runID),
		slog.String("status", status),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogTaskStart logs a workflow task attempt.
func LogTaskStart(logger *slog.Logger, runID, task string, attempt int) {
	if logger == nil {
		return
	}
	logger.Debug("task starting",
		slog.String("run_id", runID),
		slog.String("task", task),
		slog.Int("attempt", attempt),
	)
}

// LogTaskRetry logs a retry decision after a transient failure.
func LogTaskRetry(logger *slog.Logger, runID, task string, attempt int, delay time.Duration, err error) {
	if logger == nil {
		return
	}
	logger.Warn("task retrying",
		slog.String("run_id", runID),
		slog.String("task", task),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
		slog.String("error", err.Error()),
	)
}

// LogTaskError logs terminal task failure.
func LogTaskError(logger *slog.Logger, runID, task string, attempts int, err error) {
	if logger == nil {
		return
	}
	logger.Error("task failed",
		slog.String("run_id", runID),
		slog.String("task", task),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
}

// LogRunlogError logs a run history persistence failure (non-fatal).
func LogRunlogError(logger *slog.Logger, runID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("run history save failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
