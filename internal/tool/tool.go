package tool

import (
	"context"
	"encoding/json"
	"time"
)

// Tool defines the interface that all tools must implement
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Description tells the model what the tool does and when to use it
	Description() string

	// Parameters returns the JSON schema for the tool's arguments
	Parameters() map[string]any

	// Execute runs the tool with the arguments emitted by the model
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Validator is implemented by tools that can check arguments without
// running. The executor validates every call of a round before invoking
// any handler.
type Validator interface {
	Validate(params json.RawMessage) error
}

// OutputSchemer is implemented by tools with a declared result schema.
type OutputSchemer interface {
	OutputSchema() map[string]any
}

// Descriptor is the registered metadata of a tool.
type Descriptor struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"input_schema"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
}

// Describe builds the descriptor of t.
func Describe(t Tool) Descriptor {
	d := Descriptor{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.Parameters(),
	}
	if out, ok := t.(OutputSchemer); ok {
		d.OutputSchema = out.OutputSchema()
	}
	return d
}

type Result struct {
	Output string
	Data   map[string]any
}

type CallResult struct {
	ToolName  string
	CallID    string
	Params    json.RawMessage
	Result    *Result
	StartTime time.Time
	EndTime   time.Time
}

func (c *CallResult) Duration() time.Duration {
	return c.EndTime.Sub(c.StartTime)
}
