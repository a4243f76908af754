package hook

import "context"

type managerKey struct{}

type conversationKey struct{}

// WithManager lets tools reach the hook manager from their context.
func WithManager(ctx context.Context, manager *Manager) context.Context {
	return context.WithValue(ctx, managerKey{}, manager)
}

func FromContext(ctx context.Context) *Manager {
	manager, _ := ctx.Value(managerKey{}).(*Manager)
	return manager
}

// WithConversationID tags ctx with the conversation it belongs to.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationKey{}, id)
}

// ConversationID returns the id set by WithConversationID, or "".
func ConversationID(ctx context.Context) string {
	id, _ := ctx.Value(conversationKey{}).(string)
	return id
}
