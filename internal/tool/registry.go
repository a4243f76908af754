package tool

import (
	"errors"
	"fmt"
	"sync"

	"callbroker/internal/llm"
)

// Registry holds the tools a broker may expose. It is built before any
// conversation starts and only read afterwards.
type Registry struct {
	tools map[string]Tool
	order []string
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. A name collision fails with ErrDuplicateTool and
// keeps the tool registered first.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if name == "" {
		return errors.New("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// RegisterAll adds tools as a unit: if any name is empty, already
// registered or repeated within tools, nothing is registered.
func (r *Registry) RegisterAll(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(tools))
	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return errors.New("tool name cannot be empty")
		}
		if _, exists := r.tools[name]; exists || seen[name] {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		seen[name] = true
	}

	for _, t := range tools {
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return nil
}

func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	return tool, nil
}

// List returns tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, len(r.order))
	for i, name := range r.order {
		tools[i] = r.tools[name]
	}
	return tools
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Subset returns a new registry holding only the named tools, in the order
// given. Unknown names fail with ErrToolNotFound.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := NewRegistry()
	for _, name := range names {
		t, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		if err := sub.Register(t); err != nil && !errors.Is(err, ErrDuplicateTool) {
			return nil, err
		}
	}
	return sub, nil
}

func (r *Registry) Descriptors() []Descriptor {
	tools := r.List()
	descs := make([]Descriptor, len(tools))
	for i, t := range tools {
		descs[i] = Describe(t)
	}
	return descs
}

// Definitions returns what the model is shown of each tool.
func (r *Registry) Definitions() []*llm.ToolDefinition {
	tools := r.List()
	defs := make([]*llm.ToolDefinition, len(tools))

	for i, t := range tools {
		defs[i] = llm.FunctionTool(t.Name(), t.Description(), t.Parameters())
	}

	return defs
}
