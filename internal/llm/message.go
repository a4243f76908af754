package llm

import (
	"strings"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolTypeFunction is the only tool type providers accept today.
const ToolTypeFunction = "function"

// Message is one turn of a conversation. Turns are never modified once
// appended to a history.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []*ToolCall
	ToolCallID string // tool turns: the call this answers
	Name       string // tool turns: the tool that produced Content
	Timestamp  time.Time
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// ToolMessage answers the call callID with the output of tool name.
func ToolMessage(callID, name, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: callID,
		Name:       name,
		Timestamp:  time.Now(),
	}
}

type ToolCall struct {
	ID       string
	Type     string
	Function *FunctionCall
}

type FunctionCall struct {
	Name string
	// Arguments is the raw JSON text emitted by the model.
	Arguments string
}

// NormalizeArguments maps the blank arguments some local models emit for
// parameterless calls to an empty JSON object.
func NormalizeArguments(args string) string {
	if strings.TrimSpace(args) == "" {
		return "{}"
	}
	return args
}

type StopReason string

const (
	StopReasonStop          StopReason = "stop"
	StopReasonLength        StopReason = "length"
	StopReasonToolCalls     StopReason = "tool_calls"
	StopReasonContentFilter StopReason = "content_filter"
)

// ParseStopReason maps the finish reasons used across providers onto
// StopReason. Unknown or missing reasons read as a normal stop.
func ParseStopReason(reason string) StopReason {
	switch strings.ToLower(reason) {
	case "length", "max_tokens":
		return StopReasonLength
	case "tool_calls", "function_call", "tool_use":
		return StopReasonToolCalls
	case "content_filter", "safety":
		return StopReasonContentFilter
	default:
		return StopReasonStop
	}
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add accumulates another usage report into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
