package personaflow

import (
	"fmt"
	"strings"
)

// FieldType is the semantic type of a signature field.
type FieldType string

// Supported field types.
const (
	// FieldText is a free-form text value.
	FieldText FieldType = "text"
	// FieldTextList is an ordered list of text values.
	FieldTextList FieldType = "text list"
)

// Field declares one input or output of a stage: its name, semantic
// type, and a human description used to prompt the model.
type Field struct {
	Name string
	Type FieldType
	Desc string
}

// Signature is a stage's declared input/output contract. It is pure
// data: the stage's execution mode decides how it is driven.
type Signature struct {
	// Name identifies the signature in logs and errors.
	Name string
	// Doc is the task instruction given to the model.
	Doc string
	// Inputs are the fields the caller must supply, in order.
	Inputs []Field
	// Outputs are the fields the model must produce, in order.
	Outputs []Field
}

// InputNames returns input field names in declaration order.
func (s Signature) InputNames() []string {
	names := make([]string, len(s.Inputs))
	for i, f := range s.Inputs {
		names[i] = f.Name
	}
	return names
}

// OutputNames returns output field names in declaration order.
func (s Signature) OutputNames() []string {
	names := make([]string, len(s.Outputs))
	for i, f := range s.Outputs {
		names[i] = f.Name
	}
	return names
}

// Values holds named field values flowing between stages.
type Values map[string]any

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Text renders the named value as prompt text. Lists are joined with
// commas; missing values render empty.
func (v Values) Text(name string) string {
	val, ok := v[name]
	if !ok || val == nil {
		return ""
	}
	switch t := val.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}
