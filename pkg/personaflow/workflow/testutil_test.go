package workflow

import (
	"context"
	"strings"
	"sync"

	"github.com/randalmurphal/personaflow/pkg/personaflow/llm"
)

// Test doubles shared across tests

// fakeClient routes each request to a responder function and records
// concurrency high-water marks.
type fakeClient struct {
	mu          sync.Mutex
	respond     func(req llm.CompletionRequest) (string, error)
	calls       []llm.CompletionRequest
	inFlight    int
	maxInFlight int
	block       func(ctx context.Context, req llm.CompletionRequest) // optional
}

func (c *fakeClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
	block := c.block
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if block != nil {
		block(ctx, req)
	}
	if ctx.Err() != nil {
		return nil, llm.NewError("complete", ctx.Err(), false)
	}

	content, err := c.respond(req)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Content: content}, nil
}

// countCalls returns how many recorded requests satisfy pred.
func (c *fakeClient) countCalls(pred func(req llm.CompletionRequest) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if pred(call) {
			n++
		}
	}
	return n
}

func (c *fakeClient) maxConcurrent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxInFlight
}

// Request classifiers keyed off signature prompt text.

func isGateRequest(req llm.CompletionRequest) bool {
	return strings.Contains(req.SystemPrompt, "safe to process")
}

func isRationaleRequest(req llm.CompletionRequest) bool {
	return strings.Contains(req.SystemPrompt, "rationale")
}

func isAdviceRequest(req llm.CompletionRequest) bool {
	return strings.Contains(req.SystemPrompt, "financial advice")
}

// advisorResponder answers the advisor persona's stage sequence, with
// the gate returning gateResult.
func advisorResponder(gateResult string) func(req llm.CompletionRequest) (string, error) {
	return func(req llm.CompletionRequest) (string, error) {
		switch {
		case isGateRequest(req):
			return `{"security_check": "` + gateResult + `"}`, nil
		case isRationaleRequest(req):
			return `{"rationale": "thinking"}`, nil
		case isAdviceRequest(req):
			return `{"advice": "sound advice"}`, nil
		default:
			return `{"keywords": ["k"], "reasoning": "derived"}`, nil
		}
	}
}

// factoryFor wires a shared fake client into the orchestrator.
func factoryFor(client *fakeClient) ClientFactory {
	return func(cfg llm.ModelConfig) (llm.Client, error) {
		return client, nil
	}
}

// testModelConfig is a valid config for orchestrator construction.
func testModelConfig() llm.ModelConfig {
	return llm.ModelConfig{ModelID: "test-model", Provider: llm.ProviderOpenAI}
}
