package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/zhouzirui/z-widget/backend/internal/model/chat"
)

// JSONFileStore persists the message log as a single JSON document mapping
// conversation identity to its ordered messages. The document is cached in
// memory and rewritten in full on every append.
type JSONFileStore struct {
	path string

	mu            sync.RWMutex
	conversations chat.Conversations
}

// NewJSONFileStore loads path, creating it (and its directory) when absent.
// If path is empty, defaults to "./data/messages.json".
func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if path == "" {
		path = "./data/messages.json"
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &JSONFileStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONFileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.conversations = make(chat.Conversations)
		return s.flush(s.conversations)
	}
	if err != nil {
		return err
	}

	stored := make(map[string][]fileMessage)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("decode %s: %w", s.path, err)
		}
	}

	conversations := make(chat.Conversations, len(stored))
	for conversationID, messages := range stored {
		conversations[conversationID] = lo.Map(messages, func(m fileMessage, _ int) chat.Message {
			return m.message(conversationID)
		})
	}
	s.conversations = conversations
	return nil
}

// fileMessage reads both the current layout and the snake_case layout of
// messages.json files written by the Node widget server
// (conversation_id, sender_name, recipient_name, message_text, timestamp).
// Files are always rewritten in the current layout.
type fileMessage struct {
	chat.Message

	LegacyConversationID string    `json:"conversation_id"`
	LegacySenderName     string    `json:"sender_name"`
	LegacyRecipientName  *string   `json:"recipient_name"`
	LegacyText           string    `json:"message_text"`
	LegacyTimestamp      time.Time `json:"timestamp"`
}

func (m fileMessage) message(conversationID string) chat.Message {
	out := m.Message
	if out.ConversationID == "" {
		out.ConversationID = lo.CoalesceOrEmpty(m.LegacyConversationID, conversationID)
	}
	if out.SenderName == "" {
		out.SenderName = m.LegacySenderName
	}
	if out.RecipientName == "" && m.LegacyRecipientName != nil {
		out.RecipientName = *m.LegacyRecipientName
	}
	if out.Text == "" {
		out.Text = m.LegacyText
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = m.LegacyTimestamp.UTC()
	}
	return out
}

// flush writes through a temp file so a crash never leaves a truncated log.
func (s *JSONFileStore) flush(conversations chat.Conversations) error {
	data, err := json.MarshalIndent(conversations, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".messages-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// AddMessage appends to the cached log and rewrites the file before
// returning. On a write failure the cache is left untouched.
func (s *JSONFileStore) AddMessage(_ context.Context, conversationID, senderName, text, recipientName string) (chat.Message, error) {
	message := newMessage(conversationID, senderName, text, recipientName)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneConversations(s.conversations)
	next[conversationID] = append(next[conversationID], message)
	if err := s.flush(next); err != nil {
		return chat.Message{}, fmt.Errorf("write %s: %w", s.path, err)
	}
	s.conversations = next
	return message, nil
}

// MessagesForConversation returns a copy of the conversation history.
func (s *JSONFileStore) MessagesForConversation(_ context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.conversations[conversationID]
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// AllConversations returns a deep copy of the cached log.
func (s *JSONFileStore) AllConversations(_ context.Context) (chat.Conversations, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConversations(s.conversations), nil
}

// Ping verifies the backing file is still reachable.
func (s *JSONFileStore) Ping(context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

func (s *JSONFileStore) Close() error { return nil }
