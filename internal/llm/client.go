package llm

import (
	"context"
	"errors"
)

var (
	// ErrNoChoices is returned by adapters when the provider answered
	// without any completion.
	ErrNoChoices = errors.New("no choices in chat completion response")
	// ErrEmptyResponse is a nil response with a nil error.
	ErrEmptyResponse = errors.New("empty chat response")
)

// Client is a synchronous chat model. Implementations must honor ctx
// cancellation and deadlines.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Provider() string
	Model() string
}

// ChatRequest is one submission of a conversation. A nil Temperature and a
// zero MaxTokens leave the provider default in place; a Temperature
// pointing at 0 requests greedy sampling.
type ChatRequest struct {
	Messages    []Message
	Tools       []*ToolDefinition
	Temperature *float32
	MaxTokens   int
}

type ChatResponse struct {
	Message    Message
	StopReason StopReason
	Usage      Usage
}

// HasToolCalls reports whether the model asked for at least one tool.
func (r *ChatResponse) HasToolCalls() bool {
	return len(r.Message.ToolCalls) > 0
}

type ToolDefinition struct {
	Type     string
	Function *FunctionDef
}

type FunctionDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// FunctionTool describes a callable function to the model.
func FunctionTool(name, description string, parameters map[string]any) *ToolDefinition {
	return &ToolDefinition{
		Type: ToolTypeFunction,
		Function: &FunctionDef{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}
