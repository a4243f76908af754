// Package litellm adapts github.com/voocel/litellm to the llm.Client
// contract so one binary can reach OpenAI, Anthropic and Gemini models.
package litellm

import (
	"context"
	"fmt"
	"strings"

	"callbroker/internal/llm"

	"github.com/voocel/litellm"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

type Client struct {
	client   *litellm.Client
	model    string
	provider string
}

func NewClient(cfg Config) *Client {
	provider := providerFor(cfg.Model)
	defaults := litellm.WithDefaults(cfg.MaxTokens, cfg.Temperature)

	var client *litellm.Client
	switch {
	case provider == "anthropic" && cfg.BaseURL != "":
		client = litellm.New(litellm.WithAnthropic(cfg.APIKey, cfg.BaseURL), defaults)
	case provider == "anthropic":
		client = litellm.New(litellm.WithAnthropic(cfg.APIKey), defaults)
	case provider == "gemini" && cfg.BaseURL != "":
		client = litellm.New(litellm.WithGemini(cfg.APIKey, cfg.BaseURL), defaults)
	case provider == "gemini":
		client = litellm.New(litellm.WithGemini(cfg.APIKey), defaults)
	case cfg.BaseURL != "":
		client = litellm.New(litellm.WithOpenAI(cfg.APIKey, cfg.BaseURL), defaults)
	default:
		client = litellm.New(litellm.WithOpenAI(cfg.APIKey), defaults)
	}

	return &Client{
		client:   client,
		model:    cfg.Model,
		provider: provider,
	}
}

// providerFor picks a backend from the model name. Unknown models are
// treated as OpenAI-compatible.
func providerFor(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "claude"):
		return "anthropic"
	case strings.HasPrefix(m, "gemini"):
		return "gemini"
	default:
		return "openai"
	}
}

func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	litellmReq := &litellm.Request{
		Model:    c.model,
		Messages: convertMessages(req.Messages),
		Tools:    convertTools(req.Tools),
	}
	if req.Temperature != nil {
		litellmReq.Temperature = litellm.Float64Ptr(float64(*req.Temperature))
	}
	if req.MaxTokens != 0 {
		litellmReq.MaxTokens = litellm.IntPtr(req.MaxTokens)
	}

	resp, err := c.client.Chat(ctx, litellmReq)
	if err != nil {
		return nil, fmt.Errorf("litellm chat completion failed: %w", err)
	}
	if resp == nil {
		return nil, llm.ErrEmptyResponse
	}

	return convertResponse(resp), nil
}

func (c *Client) Provider() string {
	return "litellm/" + c.provider
}

func (c *Client) Model() string {
	return c.model
}

func convertMessages(msgs []llm.Message) []litellm.Message {
	result := make([]litellm.Message, len(msgs))
	for i, msg := range msgs {
		lm := litellm.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		if len(msg.ToolCalls) > 0 {
			lm.ToolCalls = make([]litellm.ToolCall, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				call := litellm.ToolCall{
					ID:   tc.ID,
					Type: llm.ToolTypeFunction,
				}
				if tc.Function != nil {
					call.Function = litellm.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: llm.NormalizeArguments(tc.Function.Arguments),
					}
				}
				lm.ToolCalls[j] = call
			}
		}
		if msg.Role == llm.RoleTool {
			lm.ToolCallID = msg.ToolCallID
		}
		result[i] = lm
	}
	return result
}

func convertTools(tools []*llm.ToolDefinition) []litellm.Tool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]litellm.Tool, len(tools))
	for i, t := range tools {
		result[i] = litellm.Tool{
			Type: llm.ToolTypeFunction,
			Function: litellm.FunctionDef{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		}
	}
	return result
}

func convertResponse(resp *litellm.Response) *llm.ChatResponse {
	result := &llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: resp.Content,
		},
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
		},
	}

	if len(resp.ToolCalls) > 0 {
		result.Message.ToolCalls = make([]*llm.ToolCall, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			result.Message.ToolCalls[i] = &llm.ToolCall{
				ID:   tc.ID,
				Type: llm.ToolTypeFunction,
				Function: &llm.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: llm.NormalizeArguments(tc.Function.Arguments),
				},
			}
		}
		result.StopReason = llm.StopReasonToolCalls
		return result
	}

	result.StopReason = llm.ParseStopReason(resp.FinishReason)
	return result
}
