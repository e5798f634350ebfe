package personaflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValues_Text_String tests rendering a plain string.
func TestValues_Text_String(t *testing.T) {
	v := Values{"answer": "42"}

	assert.Equal(t, "42", v.Text("answer"))
}

// TestValues_Text_List tests that lists join with commas.
func TestValues_Text_List(t *testing.T) {
	v := Values{
		"decoded": []any{"a", "b", "c"},
		"typed":   []string{"x", "y"},
	}

	assert.Equal(t, "a, b, c", v.Text("decoded"))
	assert.Equal(t, "x, y", v.Text("typed"))
}

// TestValues_Text_Missing tests that absent or nil values render empty.
func TestValues_Text_Missing(t *testing.T) {
	v := Values{"present": nil}

	assert.Equal(t, "", v.Text("absent"))
	assert.Equal(t, "", v.Text("present"))
}

// TestValues_Clone tests that clones do not share writes.
func TestValues_Clone(t *testing.T) {
	v := Values{"a": "1"}
	c := v.Clone()
	c["a"] = "2"

	assert.Equal(t, "1", v.Text("a"))
	assert.Equal(t, "2", c.Text("a"))
}

// TestSignature_FieldNames tests name accessors preserve declaration order.
func TestSignature_FieldNames(t *testing.T) {
	sig := EnhanceQuerySignature()

	assert.Equal(t, []string{"query", "keywords", "reasoning"}, sig.InputNames())
	assert.Equal(t, []string{"enhanced_query"}, sig.OutputNames())
}
