package personaflow

import (
	"context"
	"sync"
	"time"

	"github.com/randalmurphal/personaflow/pkg/personaflow/llm"
)

// Test doubles shared across tests

// scriptedStep is one canned model turn.
type scriptedStep struct {
	content string
	err     error
}

// scriptedClient replays canned responses in order and records every
// request it receives. After the script runs out, the last step repeats.
// When usage is set, every response reports that token usage.
type scriptedClient struct {
	mu    sync.Mutex
	steps []scriptedStep
	calls []llm.CompletionRequest
	usage llm.TokenUsage
}

// newScriptedClient creates a client that returns the given contents
// in sequence.
func newScriptedClient(contents ...string) *scriptedClient {
	steps := make([]scriptedStep, len(contents))
	for i, c := range contents {
		steps[i] = scriptedStep{content: c}
	}
	return &scriptedClient{steps: steps}
}

// newFailingClient creates a client that always returns err.
func newFailingClient(err error) *scriptedClient {
	return &scriptedClient{steps: []scriptedStep{{err: err}}}
}

func (c *scriptedClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := len(c.calls)
	c.calls = append(c.calls, req)
	if idx >= len(c.steps) {
		idx = len(c.steps) - 1
	}
	step := c.steps[idx]
	if step.err != nil {
		return nil, step.err
	}
	return &llm.CompletionResponse{Content: step.content, Model: req.Model, Usage: c.usage}, nil
}

// callCount reports how many requests the client has served.
func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// call returns the i-th recorded request.
func (c *scriptedClient) call(i int) llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[i]
}

// countingTool records its invocations and returns a fixed observation.
type countingTool struct {
	mu     sync.Mutex
	name   string
	result string
	err    error
	inputs []string
}

func (t *countingTool) Name() string        { return t.name }
func (t *countingTool) Description() string { return "test tool" }

func (t *countingTool) Call(ctx context.Context, input string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputs = append(t.inputs, input)
	if t.err != nil {
		return "", t.err
	}
	return t.result, nil
}

func (t *countingTool) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inputs)
}

// inferenceRecord is one captured RecordInference call.
type inferenceRecord struct {
	stage        string
	provider     string
	inputTokens  int
	outputTokens int
	err          error
}

// captureMetrics records metric calls for assertions.
type captureMetrics struct {
	mu         sync.Mutex
	inferences []inferenceRecord
	toolCalls  []string
}

func (m *captureMetrics) RecordStageExecution(_ context.Context, _, _ string, _ time.Duration, _ error) {
}
func (m *captureMetrics) RecordPipelineRun(_ context.Context, _ string, _ bool, _ time.Duration) {}
func (m *captureMetrics) RecordWorkflowRun(_ context.Context, _, _ string, _ time.Duration)     {}
func (m *captureMetrics) RecordTaskAttempt(_ context.Context, _ string, _ int, _ error)         {}

func (m *captureMetrics) RecordInference(_ context.Context, stage, provider string, _ time.Duration, inputTokens, outputTokens int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inferences = append(m.inferences, inferenceRecord{
		stage:        stage,
		provider:     provider,
		inputTokens:  inputTokens,
		outputTokens: outputTokens,
		err:          err,
	})
}

func (m *captureMetrics) RecordToolCall(_ context.Context, _, tool string, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls = append(m.toolCalls, tool)
}

func (m *captureMetrics) inferenceRecords() []inferenceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]inferenceRecord(nil), m.inferences...)
}

func (m *captureMetrics) toolCallNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.toolCalls...)
}

// echoSignature is a minimal one-input one-output contract.
func echoSignature() Signature {
	return Signature{
		Name: "echo",
		Doc:  "Echo the query.",
		Inputs: []Field{
			{Name: "query", Type: FieldText, Desc: "the query"},
		},
		Outputs: []Field{
			{Name: "echo", Type: FieldText, Desc: "the echoed query"},
		},
	}
}
