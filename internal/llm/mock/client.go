// Package mock provides a scripted llm.Client for tests and offline demos.
package mock

import (
	"context"
	"errors"
	"sync"

	"callbroker/internal/llm"
)

// ErrScriptExhausted is returned when a Script has no responses left.
var ErrScriptExhausted = errors.New("mock script exhausted")

// Responder produces the model's reply to a request. call is the 1-based
// index of the request.
type Responder func(ctx context.Context, call int, req *llm.ChatRequest) (*llm.ChatResponse, error)

type Client struct {
	respond  Responder
	mu       sync.Mutex
	requests []*llm.ChatRequest
}

func NewClient(respond Responder) *Client {
	return &Client{respond: respond}
}

// Script replies with the given responses in order.
func Script(responses ...*llm.ChatResponse) Responder {
	return func(ctx context.Context, call int, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if call > len(responses) {
			return nil, ErrScriptExhausted
		}
		return responses[call-1], nil
	}
}

func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	snapshot := *req
	snapshot.Messages = append([]llm.Message(nil), req.Messages...)
	c.requests = append(c.requests, &snapshot)
	call := len(c.requests)
	c.mu.Unlock()

	return c.respond(ctx, call, &snapshot)
}

func (c *Client) Provider() string {
	return "mock"
}

func (c *Client) Model() string {
	return "mock"
}

// Requests returns every request received so far.
func (c *Client) Requests() []*llm.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*llm.ChatRequest(nil), c.requests...)
}

// Text builds a plain answer.
func Text(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message:    llm.Message{Role: llm.RoleAssistant, Content: content},
		StopReason: llm.StopReasonStop,
	}
}

// ToolCalls builds a response requesting the given calls.
func ToolCalls(calls ...*llm.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message:    llm.Message{Role: llm.RoleAssistant, ToolCalls: calls},
		StopReason: llm.StopReasonToolCalls,
	}
}

// Call builds a single function tool call.
func Call(id, name, arguments string) *llm.ToolCall {
	return &llm.ToolCall{
		ID:       id,
		Type:     llm.ToolTypeFunction,
		Function: &llm.FunctionCall{Name: name, Arguments: arguments},
	}
}
