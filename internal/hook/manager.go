package hook

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Manager dispatches hook events to registered handlers. It is safe for
// concurrent use; after hooks of a parallel round trigger concurrently.
type Manager struct {
	handlers map[HookPoint][]Handler
	mu       sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		handlers: make(map[HookPoint][]Handler),
	}
}

// Register adds handler to every point it listens to. Handlers of equal
// priority keep registration order.
func (m *Manager) Register(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, point := range handler.Points() {
		// Copy so a Trigger holding the old slice never sees it reordered.
		list := make([]Handler, 0, len(m.handlers[point])+1)
		list = append(append(list, m.handlers[point]...), handler)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		m.handlers[point] = list
	}
}

// Trigger runs the handlers of data.Point in priority order. The first
// deny stops the chain and is returned with the handler's name; a handler
// error or a cancelled context aborts it.
func (m *Manager) Trigger(ctx context.Context, data *HookData) (*Feedback, error) {
	m.mu.RLock()
	handlers := m.handlers[data.Point]
	m.mu.RUnlock()

	if data.ConversationID == "" {
		data.ConversationID = ConversationID(ctx)
	}

	for _, handler := range handlers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		feedback, err := handler.Handle(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", handler.Name(), err)
		}
		if feedback != nil && !feedback.Allow {
			feedback.Handler = handler.Name()
			return feedback, nil
		}
	}

	return AllowFeedback(), nil
}

func (m *Manager) HasHandlers(point HookPoint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[point]) > 0
}

// ListHandlers returns handler names for a point in execution order.
func (m *Manager) ListHandlers(point HookPoint) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	handlers := m.handlers[point]
	names := make([]string, len(handlers))
	for i, h := range handlers {
		names[i] = h.Name()
	}
	return names
}
