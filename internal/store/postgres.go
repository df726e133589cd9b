package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhouzirui/z-widget/backend/internal/model/chat"
)

// PostgresStore keeps the message log in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool
// and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT UNIQUE NOT NULL,
			conversation_id TEXT NOT NULL,
			sender_name TEXT NOT NULL,
			recipient_name TEXT,
			message_text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at, seq);
	`)
	return err
}

// AddMessage inserts a message row.
func (s *PostgresStore) AddMessage(ctx context.Context, conversationID, senderName, text, recipientName string) (chat.Message, error) {
	message := newMessage(conversationID, senderName, text, recipientName)

	var recipient *string
	if message.RecipientName != "" {
		recipient = &message.RecipientName
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_name, recipient_name, message_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, message.ID, message.ConversationID, message.SenderName, recipient, message.Text, message.CreatedAt)
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// MessagesForConversation returns one conversation ordered by creation.
func (s *PostgresStore) MessagesForConversation(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_name, recipient_name, message_text, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at, seq
	`, conversationID)
	if err != nil {
		return nil, err
	}

	messages, err := pgx.CollectRows(rows, scanPgMessage)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = make([]chat.Message, 0)
	}
	return messages, nil
}

// AllConversations reads the whole table grouped by conversation.
func (s *PostgresStore) AllConversations(ctx context.Context) (chat.Conversations, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_name, recipient_name, message_text, created_at
		FROM messages
		ORDER BY created_at, seq
	`)
	if err != nil {
		return nil, err
	}

	messages, err := pgx.CollectRows(rows, scanPgMessage)
	if err != nil {
		return nil, err
	}

	conversations := make(chat.Conversations)
	for _, message := range messages {
		conversations[message.ConversationID] = append(conversations[message.ConversationID], message)
	}
	return conversations, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgMessage(row pgx.CollectableRow) (chat.Message, error) {
	return scanMessage(row)
}
