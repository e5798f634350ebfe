package personaflow

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/personaflow/pkg/personaflow/llm"
	"github.com/randalmurphal/personaflow/pkg/personaflow/observability"
)

// runObserver carries the run's logger, metrics recorder, and token
// accumulator down to the inference and tool call sites inside the
// stages. Stages executed outside a pipeline run see no observer and
// record nothing.
type runObserver struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	usage   *llm.TokenUsage
}

type observerKey struct{}

func withObserver(ctx context.Context, obs runObserver) context.Context {
	return context.WithValue(ctx, observerKey{}, obs)
}

func observerFrom(ctx context.Context) (runObserver, bool) {
	obs, ok := ctx.Value(observerKey{}).(runObserver)
	return obs, ok
}
