// Package broker drives a conversation between a chat model and a set of
// registered tools: it submits the conversation, runs the tools the model
// asks for, feeds their results back and repeats until the model answers.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callbroker/internal/hook"
	"callbroker/internal/llm"
	"callbroker/internal/logger"
	"callbroker/internal/tool"

	"github.com/google/uuid"
)

var (
	ErrModelTimeout          = errors.New("model call timed out")
	ErrToolCallLimitExceeded = errors.New("tool call limit exceeded")
)

const (
	DefaultMaxRounds    = 5
	DefaultModelTimeout = 2 * time.Minute
)

type Config struct {
	// MaxRounds bounds how many times tool results are resubmitted.
	MaxRounds int
	// ModelTimeout applies to every single model call.
	ModelTimeout time.Duration
	// Temperature is sent as is; nil leaves the provider default.
	Temperature *float32
	MaxTokens   int
	// SystemPrompt is prepended unless the history starts with a system turn.
	SystemPrompt string
}

type Broker struct {
	client      llm.Client
	registry    *tool.Registry
	executor    *tool.Executor
	config      Config
	logger      *logger.Logger
	hookManager *hook.Manager
}

// Result is the outcome of one conversation.
type Result struct {
	ConversationID string
	Answer         string
	Messages       []llm.Message
	ToolCalls      []*tool.CallResult
	Rounds         int
	Usage          llm.Usage
	Truncated      bool
}

func New(client llm.Client, registry *tool.Registry, cfg *Config) *Broker {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = DefaultModelTimeout
	}

	return &Broker{
		client:   client,
		registry: registry,
		executor: tool.NewExecutor(registry),
		config:   c,
		logger:   logger.Discard(),
	}
}

func (b *Broker) SetLogger(log *logger.Logger) {
	if log == nil {
		log = logger.Discard()
	}
	b.logger = log
}

// SetHookManager wires hooks into both the conversation lifecycle and tool
// execution.
func (b *Broker) SetHookManager(manager *hook.Manager) {
	b.hookManager = manager
	b.executor.SetHookManager(manager)
}

func (b *Broker) SetExecutionMode(mode tool.ExecutionMode) {
	b.executor.SetMode(mode)
}

// Ask runs a conversation made of a single user message.
func (b *Broker) Ask(ctx context.Context, prompt string, toolNames ...string) (*Result, error) {
	return b.Converse(ctx, []llm.Message{llm.UserMessage(prompt)}, toolNames...)
}

// Converse sends history to the model with the named tools available (all
// registered tools when none are named) and returns the model's final
// answer. Tool calls are executed and their results resubmitted until the
// model answers in text. Every failure aborts the conversation; no partial
// answer is returned.
func (b *Broker) Converse(ctx context.Context, history []llm.Message, toolNames ...string) (*Result, error) {
	registry := b.registry
	if len(toolNames) > 0 {
		sub, err := b.registry.Subset(toolNames...)
		if err != nil {
			return nil, fmt.Errorf("select tools: %w", err)
		}
		registry = sub
	}

	conv := &conversation{
		id:        uuid.NewString(),
		start:     time.Now(),
		state:     StateAwaitingModel,
		executor:  b.executor.WithRegistry(registry),
		defs:      registry.Definitions(),
		messages:  b.initialMessages(history),
		toolNames: registry.Names(),
	}

	ctx = hook.WithConversationID(ctx, conv.id)
	b.logger.ConversationStart(conv.id, lastUserContent(history))
	b.logger.Debug("Conversation %s: %d tool(s) available: %v", conv.id, len(conv.defs), conv.toolNames)

	if err := b.triggerStart(ctx, conv); err != nil {
		return nil, b.fail(ctx, conv, err)
	}

	result, err := b.run(ctx, conv)
	if err != nil {
		return nil, b.fail(ctx, conv, err)
	}

	b.transition(conv, StateDone)
	b.logger.Answer(result.Answer)
	b.logger.ConversationEnd(time.Since(conv.start), result.Rounds, len(result.ToolCalls))
	b.triggerEnd(ctx, conv, result, nil)

	return result, nil
}

func (b *Broker) run(ctx context.Context, conv *conversation) (*Result, error) {
	result := &Result{ConversationID: conv.id}

	for round := 0; ; round++ {
		b.transition(conv, StateAwaitingModel)
		b.logger.Round(round+1, b.config.MaxRounds, len(conv.defs))

		resp, err := b.callModel(ctx, conv)
		if err != nil {
			return nil, err
		}
		result.Usage.Add(resp.Usage)

		if !resp.HasToolCalls() {
			answer := resp.Message
			answer.Role = llm.RoleAssistant
			answer.Timestamp = time.Now()
			conv.messages = append(conv.messages, answer)

			result.Answer = answer.Content
			result.Truncated = resp.StopReason == llm.StopReasonLength
			result.Messages = conv.messages
			result.Rounds = round
			return result, nil
		}

		if round >= b.config.MaxRounds {
			return nil, fmt.Errorf("%w: model requested %d more tool call(s) after %d round(s)",
				ErrToolCallLimitExceeded, len(resp.Message.ToolCalls), round)
		}

		assistant := llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Message.Content,
			ToolCalls: withCallIDs(resp.Message.ToolCalls),
			Timestamp: time.Now(),
		}
		conv.messages = append(conv.messages, assistant)

		b.transition(conv, StateInvokingTools)
		b.logger.Info("Executing %d tool call(s)...", len(assistant.ToolCalls))
		for _, tc := range assistant.ToolCalls {
			b.logger.ToolCall(tc.Function.Name, tc.Function.Arguments)
		}

		callResults, err := conv.executor.Execute(ctx, assistant.ToolCalls)
		if err != nil {
			var callErr *tool.CallError
			if errors.As(err, &callErr) {
				b.logger.ToolResult(callErr.Tool, false, err.Error(), 0)
			}
			return nil, fmt.Errorf("round %d: %w", round+1, err)
		}

		for _, cr := range callResults {
			b.logger.ToolResult(cr.ToolName, true, cr.Result.Output, cr.Duration())
			conv.messages = append(conv.messages, llm.ToolMessage(cr.CallID, cr.ToolName, cr.Result.Output))
		}
		result.ToolCalls = append(result.ToolCalls, callResults...)
	}
}

// callModel performs one blocking model call bounded by the model timeout.
// A timeout is reported as ErrModelTimeout and never retried.
func (b *Broker) callModel(ctx context.Context, conv *conversation) (*llm.ChatResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.config.ModelTimeout)
	defer cancel()

	resp, err := b.client.Chat(callCtx, &llm.ChatRequest{
		Messages:    conv.messages,
		Tools:       conv.defs,
		Temperature: b.config.Temperature,
		MaxTokens:   b.config.MaxTokens,
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (%s): %w", ErrModelTimeout, b.config.ModelTimeout, err)
		}
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("model call failed: %w", llm.ErrEmptyResponse)
	}

	return resp, nil
}

func (b *Broker) initialMessages(history []llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)

	if b.config.SystemPrompt != "" && (len(history) == 0 || history[0].Role != llm.RoleSystem) {
		messages = append(messages, llm.SystemMessage(b.config.SystemPrompt))
	}

	return append(messages, history...)
}

func (b *Broker) fail(ctx context.Context, conv *conversation, err error) error {
	b.transition(conv, StateFailed)
	b.logger.Error("Conversation %s failed: %v", conv.id, err)
	b.triggerEnd(ctx, conv, nil, err)
	return err
}

func (b *Broker) triggerStart(ctx context.Context, conv *conversation) error {
	if b.hookManager == nil {
		return nil
	}

	data := hook.NewHookData(hook.OnConverseStart, "").
		Set("tools", conv.toolNames)

	feedback, err := b.hookManager.Trigger(ctx, data)
	if err != nil {
		return fmt.Errorf("start hook: %w", err)
	}
	if !feedback.Allow {
		return fmt.Errorf("conversation denied by %s: %s", feedback.Handler, feedback.Message)
	}
	return nil
}

func (b *Broker) triggerEnd(ctx context.Context, conv *conversation, result *Result, err error) {
	if b.hookManager == nil {
		return
	}

	data := hook.NewHookData(hook.OnConverseEnd, "").
		Set("duration", time.Since(conv.start))
	if result != nil {
		data.Set("answer", result.Answer).Set("rounds", result.Rounds)
	}
	if err != nil {
		data.Set("error", err.Error())
	}

	_, _ = b.hookManager.Trigger(ctx, data)
}

// withCallIDs copies calls, giving an id to any call the model left
// without one so tool turns can reference it.
func withCallIDs(calls []*llm.ToolCall) []*llm.ToolCall {
	out := make([]*llm.ToolCall, len(calls))
	for i, tc := range calls {
		c := *tc
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		if c.Type == "" {
			c.Type = llm.ToolTypeFunction
		}
		if c.Function == nil {
			c.Function = &llm.FunctionCall{}
		}
		out[i] = &c
	}
	return out
}

func lastUserContent(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser {
			return history[i].Content
		}
	}
	return ""
}
