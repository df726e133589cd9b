package store

import (
	"context"
	"sync"

	"github.com/zhouzirui/z-widget/backend/internal/model/chat"
)

// MemoryStore keeps the message log in process memory. Nothing survives a
// restart; it backs tests and local development.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations chat.Conversations
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(chat.Conversations)}
}

// AddMessage appends a message to the conversation log.
func (s *MemoryStore) AddMessage(_ context.Context, conversationID, senderName, text, recipientName string) (chat.Message, error) {
	message := newMessage(conversationID, senderName, text, recipientName)

	s.mu.Lock()
	s.conversations[conversationID] = append(s.conversations[conversationID], message)
	s.mu.Unlock()

	return message, nil
}

// MessagesForConversation returns a copy of the conversation history.
func (s *MemoryStore) MessagesForConversation(_ context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.conversations[conversationID]
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// AllConversations returns a deep copy of every conversation.
func (s *MemoryStore) AllConversations(_ context.Context) (chat.Conversations, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConversations(s.conversations), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func cloneConversations(src chat.Conversations) chat.Conversations {
	out := make(chat.Conversations, len(src))
	for id, messages := range src {
		out[id] = append([]chat.Message(nil), messages...)
	}
	return out
}
