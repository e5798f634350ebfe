package personaflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/personaflow/pkg/personaflow/llm"
	"github.com/randalmurphal/personaflow/pkg/personaflow/observability"
	"github.com/randalmurphal/personaflow/pkg/personaflow/tools"
)

// Mode selects how a stage drives its signature against the model.
type Mode int

// Stage execution modes.
const (
	// ModePredict performs one inference call; outputs are taken
	// directly from the result.
	ModePredict Mode = iota
	// ModeReason performs two sequential calls: the first produces a
	// reasoning trace, the second consumes the original inputs plus
	// the trace to produce the final outputs.
	ModeReason
	// ModeReact alternates model reasoning with tool invocation until
	// the model emits a final answer or the iteration bound is reached.
	ModeReact
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePredict:
		return "predict"
	case ModeReason:
		return "reason-then-predict"
	case ModeReact:
		return "reactive-tool-loop"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DefaultToolLoopLimit bounds a reactive stage's iterations when no
// explicit limit is configured.
const DefaultToolLoopLimit = 5

// Stage is an atomic inference unit: a declared input/output contract
// plus an execution mode. A stage is stateless across invocations except
// for the bound client and, in react mode, its tool registry.
type Stage struct {
	name     string
	sig      Signature
	mode     Mode
	client   llm.Client
	cfg      llm.ModelConfig
	registry *tools.Registry
	maxIters int
}

// NewPredict creates a single-shot stage.
func NewPredict(name string, sig Signature, client llm.Client, cfg llm.ModelConfig) *Stage {
	return &Stage{name: name, sig: sig, mode: ModePredict, client: client, cfg: cfg}
}

// NewReason creates a reason-then-predict stage.
func NewReason(name string, sig Signature, client llm.Client, cfg llm.ModelConfig) *Stage {
	return &Stage{name: name, sig: sig, mode: ModeReason, client: client, cfg: cfg}
}

// NewReact creates a reactive tool-loop stage bound to a fixed tool
// registry. maxIters <= 0 selects DefaultToolLoopLimit.
func NewReact(name string, sig Signature, client llm.Client, cfg llm.ModelConfig, registry *tools.Registry, maxIters int) *Stage {
	if maxIters <= 0 {
		maxIters = DefaultToolLoopLimit
	}
	return &Stage{name: name, sig: sig, mode: ModeReact, client: client, cfg: cfg, registry: registry, maxIters: maxIters}
}

// Name returns the stage name.
func (s *Stage) Name() string { return s.name }

// Signature returns the stage's field contract.
func (s *Stage) Signature() Signature { return s.sig }

// Mode returns the stage's execution mode.
func (s *Stage) Mode() Mode { return s.mode }

// Run executes the stage with the given inputs and returns its declared
// outputs. The only blocking points are the inference calls and, in
// react mode, the tool invocations.
func (s *Stage) Run(ctx context.Context, in Values) (Values, error) {
	for _, f := range s.sig.Inputs {
		if _, ok := in[f.Name]; !ok {
			return nil, fmt.Errorf("stage %s: missing input %q", s.name, f.Name)
		}
	}

	switch s.mode {
	case ModePredict:
		return s.predict(ctx, s.sig, in)
	case ModeReason:
		return s.reason(ctx, in)
	case ModeReact:
		return s.react(ctx, in)
	default:
		return nil, fmt.Errorf("stage %s: unknown mode %d", s.name, int(s.mode))
	}
}

// complete issues one inference call with the stage's bound config.
// Each call is reported to the run's observer with the provider-measured
// latency and token usage.
func (s *Stage) complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	resp, err := s.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: user}},
		Model:        s.cfg.ModelID,
		MaxTokens:    s.cfg.MaxTokens,
		Temperature:  s.cfg.Temperature,
	})

	if obs, ok := observerFrom(ctx); ok {
		if err != nil {
			obs.metrics.RecordInference(ctx, s.name, string(s.cfg.Provider), time.Since(start), 0, 0, err)
			observability.LogInferenceError(obs.logger, s.name, err)
		} else {
			obs.metrics.RecordInference(ctx, s.name, string(s.cfg.Provider), resp.Duration,
				resp.Usage.InputTokens, resp.Usage.OutputTokens, nil)
			observability.LogInferenceComplete(obs.logger, s.name, resp.Model,
				float64(resp.Duration.Milliseconds()), resp.Usage.InputTokens, resp.Usage.OutputTokens)
			if obs.usage != nil {
				obs.usage.Add(resp.Usage)
			}
		}
	}

	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// predict performs one call against sig and parses the declared outputs.
func (s *Stage) predict(ctx context.Context, sig Signature, in Values) (Values, error) {
	content, err := s.complete(ctx, buildSystemPrompt(sig), buildUserPrompt(sig, in))
	if err != nil {
		return nil, err
	}
	return parseOutputs(s.name, sig, content)
}

// rationaleSignature derives the intermediate trace contract for a
// reason-then-predict stage: same inputs, a single reasoning output.
func rationaleSignature(sig Signature) Signature {
	return Signature{
		Name:   sig.Name + "-rationale",
		Doc:    "Reason step by step through the inputs before answering.",
		Inputs: sig.Inputs,
		Outputs: []Field{
			{Name: "rationale", Type: FieldText, Desc: "The step-by-step thought process"},
		},
	}
}

// reason computes the reasoning trace, then the final outputs. The trace
// is always produced before the final call; the final prompt depends on it.
func (s *Stage) reason(ctx context.Context, in Values) (Values, error) {
	trace, err := s.predict(ctx, rationaleSignature(s.sig), in)
	if err != nil {
		return nil, err
	}

	system := buildSystemPrompt(s.sig)
	user := buildUserPrompt(s.sig, in) +
		"\n\nReasoning so far:\n" + trace.Text("rationale")
	content, err := s.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}
	return parseOutputs(s.name, s.sig, content)
}

// reactStep is the per-iteration protocol for react mode. The model
// either selects a tool or finishes; on finish the final output fields
// are read from the same object.
type reactStep struct {
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	ActionInput string `json:"action_input"`
}

const reactFinish = "finish"

// react runs the bounded tool loop.
func (s *Stage) react(ctx context.Context, in Values) (Values, error) {
	system := buildReactPrompt(s.sig, s.registry)
	var trajectory strings.Builder
	trajectory.WriteString(buildUserPrompt(s.sig, in))

	for iter := 1; iter <= s.maxIters; iter++ {
		content, err := s.complete(ctx, system, trajectory.String())
		if err != nil {
			return nil, err
		}

		raw, err := decodeObject(content)
		if err != nil {
			return nil, &ContractError{Stage: s.name, Detail: err.Error()}
		}
		var step reactStep
		step.Thought, _ = raw["thought"].(string)
		step.Action, _ = raw["action"].(string)
		step.ActionInput, _ = raw["action_input"].(string)

		if step.Action == reactFinish {
			return parseOutputs(s.name, s.sig, content)
		}

		tool, ok := s.registry.Get(step.Action)
		if !ok {
			return nil, &ContractError{
				Stage:  s.name,
				Detail: fmt.Sprintf("selected unknown tool %q", step.Action),
			}
		}

		observation, err := tool.Call(ctx, step.ActionInput)
		if obs, ok := observerFrom(ctx); ok {
			obs.metrics.RecordToolCall(ctx, s.name, tool.Name(), err)
			observability.LogToolCall(obs.logger, s.name, tool.Name(), err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, llm.NewError("tool "+tool.Name(), ctx.Err(), false)
			}
			// Tool failures are infrastructure failures from the
			// stage's point of view.
			return nil, llm.NewError("tool "+tool.Name(), err, true)
		}

		fmt.Fprintf(&trajectory, "\n\nThought: %s\nAction: %s(%s)\nObservation: %s",
			step.Thought, step.Action, step.ActionInput, observation)
	}

	return nil, &ToolLoopError{Stage: s.name, Iterations: s.maxIters}
}

// buildReactPrompt renders the react protocol instructions.
func buildReactPrompt(sig Signature, registry *tools.Registry) string {
	var b strings.Builder
	b.WriteString(buildSystemPrompt(sig))
	b.WriteString("\n\nYou may use these tools:\n")
	for _, t := range registry.Tools() {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
	}
	b.WriteString("\nAt each turn respond with a single JSON object. To use a tool:\n")
	b.WriteString(`{"thought": "...", "action": "<tool name>", "action_input": "..."}`)
	b.WriteString("\nWhen you can answer, respond with:\n")
	fmt.Fprintf(&b, `{"thought": "...", "action": %q`, reactFinish)
	for _, f := range sig.Outputs {
		fmt.Fprintf(&b, ", %q: ...", f.Name)
	}
	b.WriteString("}")
	return b.String()
}
