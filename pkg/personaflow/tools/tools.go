// Package tools provides the callable capabilities available to
// reactive tool-loop stages: a named registry plus the web search tool.
//
// Tools are treated as fallible synchronous functions over text. They
// carry no retry logic of their own; transient failures surface to the
// enclosing stage as retryable inference errors.
package tools

import (
	"context"
	"fmt"
	"sync"
)

// Tool is a callable capability exposed to a reactive stage.
type Tool interface {
	// Name is the identifier the model uses to select the tool.
	Name() string

	// Description tells the model what the tool does.
	Description() string

	// Call invokes the tool with a single text input and returns a
	// text observation.
	Call(ctx context.Context, input string) (string, error)
}

// Registry is a fixed set of tools bound to a stage at construction.
// Safe for concurrent reads after registration.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate or unnamed tool is an error.
func (r *Registry) Register(t Tool) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("tool must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name())
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Tools returns all tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Func adapts a plain function into a Tool.
type Func struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, input string) (string, error)
}

// Name implements Tool.
func (f Func) Name() string { return f.ToolName }

// Description implements Tool.
func (f Func) Description() string { return f.Desc }

// Call implements Tool.
func (f Func) Call(ctx context.Context, input string) (string, error) {
	return f.Fn(ctx, input)
}
