package broker

import (
	"time"

	"callbroker/internal/llm"
	"callbroker/internal/tool"
)

// State is where a conversation stands. It moves from awaiting_model to
// either done or invoking_tools, and from invoking_tools back to
// awaiting_model. Any failure ends in failed.
type State string

const (
	StateAwaitingModel State = "awaiting_model"
	StateInvokingTools State = "invoking_tools"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// conversation is the per-call working memory of Converse. Nothing in it
// outlives the call.
type conversation struct {
	id        string
	start     time.Time
	state     State
	executor  *tool.Executor
	defs      []*llm.ToolDefinition
	messages  []llm.Message
	toolNames []string
}

func (b *Broker) transition(conv *conversation, next State) {
	if conv.state == next {
		return
	}
	b.logger.Debug("Conversation %s: %s -> %s", conv.id, conv.state, next)
	conv.state = next
}
