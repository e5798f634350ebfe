package personaflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/personaflow/pkg/personaflow/llm"
	"github.com/randalmurphal/personaflow/pkg/personaflow/tools"
)

// TestMode_String tests mode names.
func TestMode_String(t *testing.T) {
	assert.Equal(t, "predict", ModePredict.String())
	assert.Equal(t, "reason-then-predict", ModeReason.String())
	assert.Equal(t, "reactive-tool-loop", ModeReact.String())
}

// TestStage_Run_MissingInput tests that an unsupplied input fails fast.
func TestStage_Run_MissingInput(t *testing.T) {
	client := newScriptedClient(`{"echo": "x"}`)
	stage := NewPredict("echo", echoSignature(), client, llm.ModelConfig{})

	_, err := stage.Run(context.Background(), Values{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing input "query"`)
	assert.Equal(t, 0, client.callCount())
}

// TestStage_Predict_SingleCall tests one-shot prediction.
func TestStage_Predict_SingleCall(t *testing.T) {
	client := newScriptedClient(`{"echo": "hello back"}`)
	cfg := llm.ModelConfig{ModelID: "test-model", MaxTokens: 128, Temperature: 0.2}
	stage := NewPredict("echo", echoSignature(), client, cfg)

	out, err := stage.Run(context.Background(), Values{"query": "hello"})

	require.NoError(t, err)
	assert.Equal(t, "hello back", out.Text("echo"))
	require.Equal(t, 1, client.callCount())

	req := client.call(0)
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, 128, req.MaxTokens)
	assert.InDelta(t, 0.2, req.Temperature, 1e-9)
	assert.Contains(t, req.Messages[0].Content, "query: hello")
}

// TestStage_Predict_PropagatesClientError tests inference failure passthrough.
func TestStage_Predict_PropagatesClientError(t *testing.T) {
	boom := llm.NewError("complete", errors.New("rate limited"), true)
	stage := NewPredict("echo", echoSignature(), newFailingClient(boom), llm.ModelConfig{})

	_, err := stage.Run(context.Background(), Values{"query": "hello"})

	assert.ErrorIs(t, err, boom)
	assert.True(t, IsRetryable(err))
}

// TestStage_Reason_TwoCalls tests that reasoning always precedes the answer.
func TestStage_Reason_TwoCalls(t *testing.T) {
	client := newScriptedClient(
		`{"rationale": "step one, step two"}`,
		`{"echo": "reasoned answer"}`,
	)
	stage := NewReason("echo", echoSignature(), client, llm.ModelConfig{})

	out, err := stage.Run(context.Background(), Values{"query": "hello"})

	require.NoError(t, err)
	assert.Equal(t, "reasoned answer", out.Text("echo"))
	require.Equal(t, 2, client.callCount())

	// First call asks for the rationale only.
	assert.Contains(t, client.call(0).SystemPrompt, "rationale")
	// Second call carries the trace into the final prompt.
	final := client.call(1).Messages[0].Content
	assert.Contains(t, final, "Reasoning so far:")
	assert.Contains(t, final, "step one, step two")
}

// TestStage_Reason_RationaleError tests that a failed trace aborts the stage.
func TestStage_Reason_RationaleError(t *testing.T) {
	boom := llm.NewError("complete", errors.New("overloaded"), true)
	client := newFailingClient(boom)
	stage := NewReason("echo", echoSignature(), client, llm.ModelConfig{})

	_, err := stage.Run(context.Background(), Values{"query": "hello"})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, client.callCount())
}

// reactRegistry builds a registry holding the given tool.
func reactRegistry(t *testing.T, tool tools.Tool) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	require.NoError(t, r.Register(tool))
	return r
}

// TestStage_React_FinishWithoutTools tests an immediate final answer.
func TestStage_React_FinishWithoutTools(t *testing.T) {
	client := newScriptedClient(
		`{"thought": "I know this", "action": "finish", "answer": "direct"}`,
	)
	tool := &countingTool{name: "search", result: "unused"}
	stage := NewReact("researcher", QASignature(), client, llm.ModelConfig{}, reactRegistry(t, tool), 5)

	out, err := stage.Run(context.Background(), Values{"question": "q", "context": "c"})

	require.NoError(t, err)
	assert.Equal(t, "direct", out.Text("answer"))
	assert.Equal(t, 0, tool.callCount())
}

// TestStage_React_ToolThenFinish tests one observation round.
func TestStage_React_ToolThenFinish(t *testing.T) {
	client := newScriptedClient(
		`{"thought": "need facts", "action": "search", "action_input": "go concurrency"}`,
		`{"thought": "got it", "action": "finish", "answer": "goroutines"}`,
	)
	tool := &countingTool{name: "search", result: "goroutines are cheap"}
	stage := NewReact("researcher", QASignature(), client, llm.ModelConfig{}, reactRegistry(t, tool), 5)

	out, err := stage.Run(context.Background(), Values{"question": "q", "context": "c"})

	require.NoError(t, err)
	assert.Equal(t, "goroutines", out.Text("answer"))
	require.Equal(t, 1, tool.callCount())
	assert.Equal(t, "go concurrency", tool.inputs[0])

	// The second turn sees the observation in its trajectory.
	assert.Contains(t, client.call(1).Messages[0].Content, "Observation: goroutines are cheap")
}

// TestStage_React_RecordsToolCalls tests that tool invocations reach
// the run's metrics recorder.
func TestStage_React_RecordsToolCalls(t *testing.T) {
	client := newScriptedClient(
		`{"thought": "need facts", "action": "search", "action_input": "go concurrency"}`,
		`{"thought": "got it", "action": "finish", "answer": "goroutines"}`,
	)
	tool := &countingTool{name: "search", result: "goroutines are cheap"}
	stage := NewReact("researcher", QASignature(), client, llm.ModelConfig{}, reactRegistry(t, tool), 5)

	metrics := &captureMetrics{}
	ctx := withObserver(context.Background(), runObserver{metrics: metrics})

	_, err := stage.Run(ctx, Values{"question": "q", "context": "c"})

	require.NoError(t, err)
	assert.Equal(t, []string{"search"}, metrics.toolCallNames())
	// Both model turns are reported as inference calls.
	assert.Len(t, metrics.inferenceRecords(), 2)
}

// TestStage_React_UnknownTool tests that an undeclared tool is a contract violation.
func TestStage_React_UnknownTool(t *testing.T) {
	client := newScriptedClient(
		`{"thought": "hmm", "action": "calculator", "action_input": "2+2"}`,
	)
	tool := &countingTool{name: "search"}
	stage := NewReact("researcher", QASignature(), client, llm.ModelConfig{}, reactRegistry(t, tool), 5)

	_, err := stage.Run(context.Background(), Values{"question": "q", "context": "c"})

	var cerr *ContractError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Detail, "calculator")
}

// TestStage_React_LoopExhaustion tests the iteration bound.
func TestStage_React_LoopExhaustion(t *testing.T) {
	// The model never finishes; the last step repeats each iteration.
	client := newScriptedClient(
		`{"thought": "again", "action": "search", "action_input": "more"}`,
	)
	tool := &countingTool{name: "search", result: "nothing new"}
	stage := NewReact("researcher", QASignature(), client, llm.ModelConfig{}, reactRegistry(t, tool), 3)

	_, err := stage.Run(context.Background(), Values{"question": "q", "context": "c"})

	var lerr *ToolLoopError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 3, lerr.Iterations)
	assert.Equal(t, 3, tool.callCount())
	assert.False(t, IsRetryable(err))
}

// TestStage_React_ToolFailure tests that a tool error surfaces as transient.
func TestStage_React_ToolFailure(t *testing.T) {
	client := newScriptedClient(
		`{"thought": "search it", "action": "search", "action_input": "query"}`,
	)
	tool := &countingTool{name: "search", err: errors.New("connection reset")}
	stage := NewReact("researcher", QASignature(), client, llm.ModelConfig{}, reactRegistry(t, tool), 5)

	_, err := stage.Run(context.Background(), Values{"question": "q", "context": "c"})

	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

// TestNewReact_DefaultLimit tests the fallback iteration bound.
func TestNewReact_DefaultLimit(t *testing.T) {
	tool := &countingTool{name: "search"}
	stage := NewReact("researcher", QASignature(), newScriptedClient(), llm.ModelConfig{}, reactRegistry(t, tool), 0)

	assert.Equal(t, DefaultToolLoopLimit, stage.maxIters)
}
