package hook

import (
	"context"
	"time"
)

// HookPoint names a moment in a conversation where handlers run.
type HookPoint string

const (
	// Tool calls. Before hooks run during preflight, one call at a time,
	// and may deny the call.
	BeforeToolExecution HookPoint = "before_tool_execution"
	AfterToolExecution  HookPoint = "after_tool_execution"

	// Conversation lifecycle. A start hook may deny the conversation.
	OnConverseStart HookPoint = "on_converse_start"
	OnConverseEnd   HookPoint = "on_converse_end"
)

// HookData describes one event. ConversationID is filled from the context
// by Manager.Trigger when left empty.
type HookData struct {
	Point          HookPoint
	Timestamp      time.Time
	ConversationID string
	ToolName       string
	CallID         string
	Data           map[string]any
}

func NewHookData(point HookPoint, toolName string) *HookData {
	return &HookData{
		Point:     point,
		Timestamp: time.Now(),
		ToolName:  toolName,
		Data:      make(map[string]any),
	}
}

// ForCall sets the tool call id.
func (d *HookData) ForCall(callID string) *HookData {
	d.CallID = callID
	return d
}

func (d *HookData) Set(key string, value any) *HookData {
	d.Data[key] = value
	return d
}

func (d *HookData) Get(key string) any {
	return d.Data[key]
}

// GetString returns the value at key, or "" if it is not a string.
func (d *HookData) GetString(key string) string {
	if v, ok := d.Data[key].(string); ok {
		return v
	}
	return ""
}

// Feedback is a handler's verdict. Handler names who denied.
type Feedback struct {
	Allow   bool
	Message string
	Handler string
}

func AllowFeedback() *Feedback {
	return &Feedback{Allow: true}
}

func DenyFeedback(message string) *Feedback {
	return &Feedback{Allow: false, Message: message}
}

// Handler is the interface for hook handlers
type Handler interface {
	// Name identifies the handler in deny messages and listings
	Name() string

	// Points returns which hook points this handler listens to
	Points() []HookPoint

	// Handle processes the event. A nil feedback counts as allow.
	Handle(ctx context.Context, data *HookData) (*Feedback, error)

	// Priority orders handlers of a point (higher = earlier execution)
	Priority() int
}
