package personaflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/personaflow/pkg/personaflow/llm"
	"github.com/randalmurphal/personaflow/pkg/personaflow/observability"
	"go.opentelemetry.io/otel/trace"
)

// StageResult records one completed stage within a pipeline run.
type StageResult struct {
	Stage    string
	Outputs  Values
	Duration time.Duration
	// CompletedAt orders stage completions across a run.
	CompletedAt time.Time
}

// PipelineRun is one execution instance of a pipeline. It is created at
// invocation start, appended to as each stage completes, and owns no
// resources beyond in-memory buffers.
type PipelineRun struct {
	ID           string
	Persona      PersonaType
	Query        string
	Context      string
	StageResults []StageResult
	// Output is the terminal output field's text value.
	Output string
	// Usage accumulates token consumption across every inference call
	// of the run, including intermediate reasoning and react turns.
	Usage llm.TokenUsage
}

// boundStage is a stage plus its wiring into the pipeline's field flow.
type boundStage struct {
	stage    *Stage
	bindings map[string]string
	defaults Values
}

// StageOption wires a stage into a pipeline.
type StageOption func(*boundStage)

// WithBinding maps a stage input to an upstream field of another name.
func WithBinding(input, source string) StageOption {
	return func(b *boundStage) {
		if b.bindings == nil {
			b.bindings = make(map[string]string)
		}
		b.bindings[input] = source
	}
}

// WithDefault supplies a constant value for a stage input, used when the
// upstream field is absent or empty.
func WithDefault(input string, value any) StageOption {
	return func(b *boundStage) {
		if b.defaults == nil {
			b.defaults = make(Values)
		}
		b.defaults[input] = value
	}
}

// PipelineBuilder is a mutable builder for stage compositions.
// Build the pipeline in one goroutine, then Compile. Compile validates
// the field flow; a mismatch is a construction-time error.
type PipelineBuilder struct {
	persona PersonaType
	inputs  []Field
	stages  []boundStage
}

// NewPipeline creates a builder for the given persona. Every pipeline
// starts with the caller-supplied query and optional context fields.
func NewPipeline(persona PersonaType) *PipelineBuilder {
	return &PipelineBuilder{
		persona: persona,
		inputs: []Field{
			{Name: "query", Type: FieldText, Desc: "The user query"},
			{Name: "context", Type: FieldText, Desc: "Optional caller-supplied context"},
		},
	}
}

// AddStage appends a stage. Returns the builder for chaining.
// Panics if stage is nil; wiring validation happens at Compile time.
func (b *PipelineBuilder) AddStage(stage *Stage, opts ...StageOption) *PipelineBuilder {
	if stage == nil {
		panic("personaflow: stage cannot be nil")
	}
	bound := boundStage{stage: stage}
	for _, opt := range opts {
		opt(&bound)
	}
	b.stages = append(b.stages, bound)
	return b
}

// Compile validates the composition and returns an immutable Pipeline.
//
// Validation walks the stages in order, carrying the set of available
// fields (the pipeline inputs plus every completed stage's outputs), and
// requires each stage's inputs to be satisfiable from that set, its
// bindings, or its defaults. Bindings must reference available fields.
func (b *PipelineBuilder) Compile() (*Pipeline, error) {
	if len(b.stages) == 0 {
		return nil, &ConfigurationError{Component: "pipeline", Err: fmt.Errorf("no stages")}
	}

	available := make(map[string]bool, len(b.inputs))
	for _, f := range b.inputs {
		available[f.Name] = true
	}

	for _, bound := range b.stages {
		sig := bound.stage.Signature()
		for _, f := range sig.Inputs {
			if source, ok := bound.bindings[f.Name]; ok {
				if !available[source] {
					return nil, &ConfigurationError{
						Component: "pipeline",
						Err: fmt.Errorf("stage %s: input %q bound to unavailable field %q",
							bound.stage.Name(), f.Name, source),
					}
				}
				continue
			}
			if _, ok := bound.defaults[f.Name]; ok {
				continue
			}
			if !available[f.Name] {
				return nil, &ConfigurationError{
					Component: "pipeline",
					Err: fmt.Errorf("stage %s: input %q not produced by any prior stage",
						bound.stage.Name(), f.Name),
				}
			}
		}
		for _, f := range sig.Outputs {
			available[f.Name] = true
		}
	}

	last := b.stages[len(b.stages)-1].stage.Signature()
	return &Pipeline{
		persona:  b.persona,
		stages:   b.stages,
		terminal: last.Outputs[0].Name,
	}, nil
}

// Pipeline is an immutable ordered composition of stages for one persona.
// Execution within one run is strictly sequential: each stage's outputs
// feed the next, and no stage begins before its predecessor completes.
type Pipeline struct {
	persona  PersonaType
	stages   []boundStage
	terminal string
}

// Persona returns the persona this pipeline serves.
func (p *Pipeline) Persona() PersonaType { return p.persona }

// StageNames returns the stage names in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, bound := range p.stages {
		names[i] = bound.stage.Name()
	}
	return names
}

// runConfig holds per-run execution options.
type runConfig struct {
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	runID          string
}

func defaultRunConfig() runConfig {
	return runConfig{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// RunOption configures one pipeline run.
type RunOption func(*runConfig)

// WithLogger sets the run's logger.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables metrics recording for the run.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables span creation for the run.
func WithTracing(sm observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if sm != nil {
			c.spans = sm
			c.tracingEnabled = true
		}
	}
}

// WithRunID sets the run identifier. Auto-generated if not set.
func WithRunID(id string) RunOption {
	return func(c *runConfig) { c.runID = id }
}

// Run executes the pipeline for one query. queryContext may be empty.
// Suspension points are exactly the inference and tool calls inside the
// stages; cancellation of ctx cancels the outstanding call and returns,
// leaving already-completed stage results in the returned run record.
func (p *Pipeline) Run(ctx context.Context, query, queryContext string, opts ...RunOption) (run *PipelineRun, runErr error) {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == "" {
		cfg.runID = uuid.New().String()
	}

	run = &PipelineRun{
		ID:      cfg.runID,
		Persona: p.persona,
		Query:   query,
		Context: queryContext,
	}

	start := time.Now()
	observability.LogPipelineStart(cfg.logger, cfg.runID, string(p.persona))

	var execCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		execCtx, runSpan = cfg.spans.StartPipelineSpan(ctx, string(p.persona), cfg.runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}
	execCtx = withObserver(execCtx, runObserver{
		logger:  cfg.logger,
		metrics: cfg.metrics,
		usage:   &run.Usage,
	})

	values := Values{"query": query, "context": queryContext}

	for _, bound := range p.stages {
		select {
		case <-ctx.Done():
			observability.LogPipelineError(cfg.logger, cfg.runID, ctx.Err(),
				float64(time.Since(start).Milliseconds()), bound.stage.Name())
			return run, ctx.Err()
		default:
		}

		stage := bound.stage
		observability.LogStageStart(cfg.logger, stage.Name(), stage.Mode().String())

		stageCtx := execCtx
		var stageSpan trace.Span
		if cfg.tracingEnabled {
			stageCtx, stageSpan = cfg.spans.StartStageSpan(execCtx, stage.Name())
		}

		stageStart := time.Now()
		outputs, err := stage.Run(stageCtx, resolveInputs(stage.Signature(), bound, values))
		stageDuration := time.Since(stageStart)

		cfg.metrics.RecordStageExecution(stageCtx, stage.Name(), stage.Mode().String(), stageDuration, err)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(stageSpan, err)
		}

		if err != nil {
			observability.LogStageError(cfg.logger, stage.Name(), err)
			cfg.metrics.RecordPipelineRun(ctx, string(p.persona), false, time.Since(start))
			observability.LogPipelineError(cfg.logger, cfg.runID, err,
				float64(time.Since(start).Milliseconds()), stage.Name())
			return run, err
		}

		observability.LogStageComplete(cfg.logger, stage.Name(), float64(stageDuration.Milliseconds()))
		run.StageResults = append(run.StageResults, StageResult{
			Stage:       stage.Name(),
			Outputs:     outputs,
			Duration:    stageDuration,
			CompletedAt: time.Now(),
		})
		for name, val := range outputs {
			values[name] = val
		}
	}

	run.Output = values.Text(p.terminal)
	duration := time.Since(start)
	cfg.metrics.RecordPipelineRun(ctx, string(p.persona), true, duration)
	observability.LogPipelineComplete(cfg.logger, cfg.runID,
		float64(duration.Milliseconds()), len(p.stages))
	return run, nil
}

// RunSync is the blocking variant of Run for callers without a
// cancellation scope. Identical semantics; it simply supplies its own
// background context.
func (p *Pipeline) RunSync(query, queryContext string, opts ...RunOption) (*PipelineRun, error) {
	return p.Run(context.Background(), query, queryContext, opts...)
}

// resolveInputs assembles a stage's input values from the accumulated
// field set, applying bindings and defaults declared at construction.
func resolveInputs(sig Signature, bound boundStage, values Values) Values {
	in := make(Values, len(sig.Inputs))
	for _, f := range sig.Inputs {
		if source, ok := bound.bindings[f.Name]; ok {
			in[f.Name] = values[source]
			continue
		}
		if val, ok := values[f.Name]; ok && values.Text(f.Name) != "" {
			in[f.Name] = val
			continue
		}
		if val, ok := bound.defaults[f.Name]; ok {
			in[f.Name] = val
			continue
		}
		in[f.Name] = values[f.Name]
	}
	return in
}
