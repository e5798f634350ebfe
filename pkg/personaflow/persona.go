package personaflow

import (
	"fmt"

	"github.com/randalmurphal/personaflow/pkg/personaflow/llm"
	"github.com/randalmurphal/personaflow/pkg/personaflow/tools"
)

// PersonaType selects which stage sequence a pipeline is built from.
type PersonaType string

// Available personas.
const (
	PersonaAnalyst    PersonaType = "analyst"
	PersonaCreative   PersonaType = "creative"
	PersonaResearcher PersonaType = "researcher"
	PersonaAdvisor    PersonaType = "advisor"
	PersonaMentor     PersonaType = "mentor"
	PersonaSecurity   PersonaType = "security"
	PersonaBaseQA     PersonaType = "base-qa"
	PersonaMath       PersonaType = "math"
)

// personas is the closed persona set.
var personas = map[PersonaType]bool{
	PersonaAnalyst:    true,
	PersonaCreative:   true,
	PersonaResearcher: true,
	PersonaAdvisor:    true,
	PersonaMentor:     true,
	PersonaSecurity:   true,
	PersonaBaseQA:     true,
	PersonaMath:       true,
}

// Valid reports whether p is a known persona.
func (p PersonaType) Valid() bool { return personas[p] }

// ParsePersona converts a string to a PersonaType.
func ParsePersona(s string) (PersonaType, error) {
	p := PersonaType(s)
	if !p.Valid() {
		return "", &ConfigurationError{Component: "persona", Err: fmt.Errorf("unknown persona %q", s)}
	}
	return p, nil
}

// Stage signatures. The field descriptions double as prompt text, so they
// stay close to natural language.

// ReasoningSignature derives keywords and a reasoning trace from a query.
func ReasoningSignature() Signature {
	return Signature{
		Name: "reasoning",
		Doc:  "Reason step by step through the query for getting the correct outputs.",
		Inputs: []Field{
			{Name: "query", Type: FieldText, Desc: "The query to reason about"},
		},
		Outputs: []Field{
			{Name: "keywords", Type: FieldTextList, Desc: "Keywords generated according to the query"},
			{Name: "reasoning", Type: FieldText, Desc: "The thought process made"},
		},
	}
}

// EnhanceQuerySignature enriches the query with derived information.
func EnhanceQuerySignature() Signature {
	return Signature{
		Name: "enhance-query",
		Doc:  "Enhance the query with additional information.",
		Inputs: []Field{
			{Name: "query", Type: FieldText, Desc: "Original query"},
			{Name: "keywords", Type: FieldTextList, Desc: "Keywords generated from the query"},
			{Name: "reasoning", Type: FieldText, Desc: "Reasoning behind the query"},
		},
		Outputs: []Field{
			{Name: "enhanced_query", Type: FieldText, Desc: "Enhanced query with additional information"},
		},
	}
}

// QASignature answers a question given context.
func QASignature() Signature {
	return Signature{
		Name: "qa",
		Doc:  "Answer the question using the provided context.",
		Inputs: []Field{
			{Name: "question", Type: FieldText, Desc: "The question to be answered"},
			{Name: "context", Type: FieldText, Desc: "Context or background information for the question"},
		},
		Outputs: []Field{
			{Name: "answer", Type: FieldText, Desc: "The answer to the question"},
		},
	}
}

// AdvisorSignature provides financial advice.
func AdvisorSignature() Signature {
	return Signature{
		Name: "advisor",
		Doc:  "Provide well-grounded financial advice for the query.",
		Inputs: []Field{
			{Name: "query", Type: FieldText, Desc: "The advice to be provided"},
			{Name: "keywords", Type: FieldTextList, Desc: "Keywords related to the query"},
			{Name: "reasoning", Type: FieldText, Desc: "The thought process made"},
		},
		Outputs: []Field{
			{Name: "advice", Type: FieldText, Desc: "The advice provided"},
		},
	}
}

// CreativeSignature generates creative content.
func CreativeSignature() Signature {
	return Signature{
		Name: "creative",
		Doc:  "Generate creative content for the task.",
		Inputs: []Field{
			{Name: "query", Type: FieldText, Desc: "The creative task to be performed"},
			{Name: "keywords", Type: FieldTextList, Desc: "Keywords related to the query"},
			{Name: "reasoning", Type: FieldText, Desc: "The thought process made"},
		},
		Outputs: []Field{
			{Name: "creative_output", Type: FieldText, Desc: "The creative output generated"},
		},
	}
}

// MentorSignature provides guidance.
func MentorSignature() Signature {
	return Signature{
		Name: "mentor",
		Doc:  "Provide mentoring guidance for the query.",
		Inputs: []Field{
			{Name: "query", Type: FieldText, Desc: "The guidance to be provided"},
			{Name: "keywords", Type: FieldTextList, Desc: "Keywords related to the query"},
			{Name: "reasoning", Type: FieldText, Desc: "The thought process made"},
		},
		Outputs: []Field{
			{Name: "guidance", Type: FieldText, Desc: "The guidance provided"},
		},
	}
}

// MathSignature solves math problems.
func MathSignature() Signature {
	return Signature{
		Name: "math",
		Doc:  "Solve the math problem.",
		Inputs: []Field{
			{Name: "query", Type: FieldText, Desc: "The math problem to be solved"},
			{Name: "reasoning", Type: FieldText, Desc: "Reasoning behind the math problem"},
		},
		Outputs: []Field{
			{Name: "result", Type: FieldText, Desc: "The answer to the math problem"},
		},
	}
}

// SecuritySignature checks a query against the security policy.
// The result domain is exactly {"passed", "failed"}.
func SecuritySignature() Signature {
	return Signature{
		Name: "security",
		Doc:  `Check whether the query is safe to process. Answer "passed" or "failed" only.`,
		Inputs: []Field{
			{Name: "query", Type: FieldText, Desc: "The security check to be performed"},
		},
		Outputs: []Field{
			{Name: "security_check", Type: FieldText, Desc: `The security check result: "passed" or "failed"`},
		},
	}
}

// researcherContext is fed to the react stage when the caller supplies
// no context of their own.
const researcherContext = "Search for the answer. There's no context available yet."

// personaConfig holds persona factory options.
type personaConfig struct {
	searchTool    tools.Tool
	toolLoopLimit int
}

// PersonaOption configures NewPersonaPipeline.
type PersonaOption func(*personaConfig)

// WithSearchTool supplies the search capability for the researcher
// persona. Required for researcher, ignored by the others.
func WithSearchTool(t tools.Tool) PersonaOption {
	return func(c *personaConfig) { c.searchTool = t }
}

// WithToolLoopLimit bounds the researcher's reactive loop iterations.
func WithToolLoopLimit(n int) PersonaOption {
	return func(c *personaConfig) { c.toolLoopLimit = n }
}

// NewPersonaPipeline builds the canonical stage sequence for a persona,
// bound to the given client and model configuration. It is an explicit
// factory: call it at orchestrator startup (or per run), never at init.
func NewPersonaPipeline(persona PersonaType, client llm.Client, cfg llm.ModelConfig, opts ...PersonaOption) (*Pipeline, error) {
	if !persona.Valid() {
		return nil, &ConfigurationError{Component: "persona", Err: fmt.Errorf("unknown persona %q", persona)}
	}
	if client == nil {
		return nil, &ConfigurationError{Component: "persona", Err: fmt.Errorf("nil inference client")}
	}

	pc := personaConfig{}
	for _, opt := range opts {
		opt(&pc)
	}

	switch persona {
	case PersonaBaseQA, PersonaAnalyst:
		return NewPipeline(persona).
			AddStage(NewReason("reasoner", ReasoningSignature(), client, cfg)).
			AddStage(NewReason("query-enhancer", EnhanceQuerySignature(), client, cfg)).
			AddStage(NewPredict("answerer", QASignature(), client, cfg),
				WithBinding("question", "enhanced_query"),
				WithBinding("context", "reasoning")).
			Compile()

	case PersonaAdvisor:
		return specializerPipeline(persona, "advisor", AdvisorSignature(), client, cfg)
	case PersonaCreative:
		return specializerPipeline(persona, "creative-generator", CreativeSignature(), client, cfg)
	case PersonaMentor:
		return specializerPipeline(persona, "mentor", MentorSignature(), client, cfg)

	case PersonaMath:
		return NewPipeline(persona).
			AddStage(NewReason("reasoner", ReasoningSignature(), client, cfg)).
			AddStage(NewPredict("solver", MathSignature(), client, cfg)).
			Compile()

	case PersonaResearcher:
		if pc.searchTool == nil {
			return nil, &ConfigurationError{
				Component: "persona",
				Err:       fmt.Errorf("researcher requires a search tool"),
			}
		}
		registry := tools.NewRegistry()
		if err := registry.Register(pc.searchTool); err != nil {
			return nil, &ConfigurationError{Component: "persona", Err: err}
		}
		return NewPipeline(persona).
			AddStage(NewReason("reasoner", ReasoningSignature(), client, cfg)).
			AddStage(NewReason("query-enhancer", EnhanceQuerySignature(), client, cfg)).
			AddStage(NewReact("researcher", QASignature(), client, cfg, registry, pc.toolLoopLimit),
				WithBinding("question", "enhanced_query"),
				WithDefault("context", researcherContext)).
			Compile()

	case PersonaSecurity:
		return NewPipeline(persona).
			AddStage(NewPredict("checker", SecuritySignature(), client, cfg)).
			Compile()

	default:
		return nil, &ConfigurationError{Component: "persona", Err: fmt.Errorf("unknown persona %q", persona)}
	}
}

// specializerPipeline is the shared reason-then-specialize composition
// used by the advisor, creative, and mentor personas.
func specializerPipeline(persona PersonaType, stageName string, sig Signature, client llm.Client, cfg llm.ModelConfig) (*Pipeline, error) {
	return NewPipeline(persona).
		AddStage(NewReason("reasoner", ReasoningSignature(), client, cfg)).
		AddStage(NewPredict(stageName, sig, client, cfg)).
		Compile()
}
