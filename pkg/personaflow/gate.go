package personaflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/personaflow/pkg/personaflow/llm"
)

// SecurityGate wraps the security persona pipeline as a boolean
// pre-check. Its result short-circuits downstream execution.
type SecurityGate struct {
	pipeline *Pipeline
}

// NewSecurityGate builds the gate's single-stage pipeline.
func NewSecurityGate(client llm.Client, cfg llm.ModelConfig) (*SecurityGate, error) {
	p, err := NewPersonaPipeline(PersonaSecurity, client, cfg)
	if err != nil {
		return nil, err
	}
	return &SecurityGate{pipeline: p}, nil
}

// Check runs the gate for one query. The textual result maps strictly:
// "passed" is true, "failed" is false, anything else is a contract
// violation by the model, never silently coerced to false.
func (g *SecurityGate) Check(ctx context.Context, query string, opts ...RunOption) (bool, error) {
	run, err := g.pipeline.Run(ctx, query, "", opts...)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(run.Output)) {
	case "passed":
		return true, nil
	case "failed":
		return false, nil
	default:
		return false, &ContractError{
			Stage:  "checker",
			Detail: fmt.Sprintf("security check returned %q", run.Output),
		}
	}
}
