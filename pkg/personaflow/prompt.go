package personaflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// buildSystemPrompt renders a signature into the model's system prompt:
// the task instruction, the field contracts, and the structured-output
// requirement.
func buildSystemPrompt(sig Signature) string {
	var b strings.Builder
	b.WriteString(sig.Doc)
	b.WriteString("\n\nYou receive these inputs:\n")
	for _, f := range sig.Inputs {
		fmt.Fprintf(&b, "- %s (%s): %s\n", f.Name, f.Type, f.Desc)
	}
	b.WriteString("\nRespond with a single JSON object containing exactly these keys:\n")
	for _, f := range sig.Outputs {
		fmt.Fprintf(&b, "- %s (%s): %s\n", f.Name, f.Type, f.Desc)
	}
	b.WriteString("\nReturn only the JSON object, no other text.")
	return b.String()
}

// buildUserPrompt renders input values as labeled lines.
func buildUserPrompt(sig Signature, in Values) string {
	var b strings.Builder
	for _, f := range sig.Inputs {
		fmt.Fprintf(&b, "%s: %s\n", f.Name, in.Text(f.Name))
	}
	return strings.TrimRight(b.String(), "\n")
}

// parseOutputs extracts the declared output fields from model content.
// A missing field or unparseable payload is a contract violation.
func parseOutputs(stage string, sig Signature, content string) (Values, error) {
	raw, err := decodeObject(content)
	if err != nil {
		return nil, &ContractError{Stage: stage, Detail: err.Error()}
	}

	out := make(Values, len(sig.Outputs))
	for _, f := range sig.Outputs {
		val, ok := raw[f.Name]
		if !ok {
			return nil, &ContractError{
				Stage:  stage,
				Detail: fmt.Sprintf("missing output field %q", f.Name),
			}
		}
		out[f.Name] = val
	}
	return out, nil
}

// decodeObject finds and decodes the first JSON object in content,
// tolerating markdown code fences around it.
func decodeObject(content string) (map[string]any, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("malformed JSON in model output: %v", err)
	}
	return raw, nil
}
