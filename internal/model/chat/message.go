package chat

import "time"

// Message is a single immutable entry in a conversation's log.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderName     string    `json:"senderName"`
	RecipientName  string    `json:"recipientName,omitempty"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Conversations groups stored messages by conversation identity. Each slice
// is ordered by creation time, ties broken by insertion order.
type Conversations map[string][]Message
