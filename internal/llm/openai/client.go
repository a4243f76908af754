// Package openai talks to any OpenAI-compatible chat completions API,
// including Ollama's /v1 endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"callbroker/internal/llm"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is Ollama's OpenAI-compatible endpoint.
const DefaultBaseURL = "http://localhost:11434/v1"

type Config struct {
	APIKey string
	// BaseURL selects the server. Empty means api.openai.com.
	BaseURL string
	Model   string
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(cfg Config) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}
}

func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    convertMessages(req.Messages),
		Tools:       convertTools(req.Tools),
		Temperature: temperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai chat completion failed (status %d): %w", apiErr.HTTPStatusCode, err)
		}
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}

	return convertResponse(resp)
}

// temperature maps an explicit 0 to the smallest positive float32, since
// go-openai omits a zero temperature from the request body.
func temperature(t *float32) float32 {
	switch {
	case t == nil:
		return 0
	case *t == 0:
		return math.SmallestNonzeroFloat32
	default:
		return *t
	}
}

func (c *Client) Provider() string {
	return "openai"
}

func (c *Client) Model() string {
	return c.model
}

func convertMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(msgs))
	for i, msg := range msgs {
		out := openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}

		for _, tc := range msg.ToolCalls {
			call := openai.ToolCall{ID: tc.ID, Type: openai.ToolTypeFunction}
			if tc.Function != nil {
				call.Function = openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: llm.NormalizeArguments(tc.Function.Arguments),
				}
			}
			out.ToolCalls = append(out.ToolCalls, call)
		}

		if msg.Role == llm.RoleTool {
			out.ToolCallID = msg.ToolCallID
			out.Name = msg.Name
		}

		result[i] = out
	}
	return result
}

func convertTools(tools []*llm.ToolDefinition) []openai.Tool {
	var result []openai.Tool
	for _, t := range tools {
		if t.Function == nil {
			continue
		}
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	return result
}

// convertResponse reads the first choice. Tool calls win over the finish
// reason, which some servers report as "stop" even when calling tools.
func convertResponse(resp openai.ChatCompletionResponse) (*llm.ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, llm.ErrNoChoices
	}

	choice := resp.Choices[0]
	result := &llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: choice.Message.Content,
		},
		StopReason: llm.ParseStopReason(string(choice.FinishReason)),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		result.Message.ToolCalls = append(result.Message.ToolCalls, &llm.ToolCall{
			ID:   tc.ID,
			Type: llm.ToolTypeFunction,
			Function: &llm.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: llm.NormalizeArguments(tc.Function.Arguments),
			},
		})
	}
	if result.HasToolCalls() {
		result.StopReason = llm.StopReasonToolCalls
	}

	return result, nil
}
