package chat

import "context"

// Store is the append-only message log shared by every ingress path.
type Store interface {
	// AddMessage appends a message to a conversation and returns it with the
	// store-assigned fields populated. recipientName may be empty.
	AddMessage(ctx context.Context, conversationID, senderName, text, recipientName string) (Message, error)
	// MessagesForConversation returns a conversation's history in order. An
	// unknown conversation yields an empty, non-nil slice.
	MessagesForConversation(ctx context.Context, conversationID string) ([]Message, error)
	// AllConversations returns every persisted message grouped by conversation.
	AllConversations(ctx context.Context) (Conversations, error)
	Ping(ctx context.Context) error
	Close() error
}
