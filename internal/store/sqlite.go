package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zhouzirui/z-widget/backend/internal/model/chat"
)

// SQLiteStore keeps the message log in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath.
// If dbPath is empty, defaults to "./data/chat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates the messages table if it doesn't exist. seq preserves
// insertion order for messages stamped with the same instant.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		conversation_id TEXT NOT NULL,
		sender_name TEXT NOT NULL,
		recipient_name TEXT,
		message_text TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at, seq);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// AddMessage inserts a message row.
func (s *SQLiteStore) AddMessage(ctx context.Context, conversationID, senderName, text, recipientName string) (chat.Message, error) {
	message := newMessage(conversationID, senderName, text, recipientName)

	var recipient *string
	if message.RecipientName != "" {
		recipient = &message.RecipientName
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_name, recipient_name, message_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, message.ID, message.ConversationID, message.SenderName, recipient, message.Text, message.CreatedAt)
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// MessagesForConversation returns one conversation ordered by creation.
func (s *SQLiteStore) MessagesForConversation(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_name, recipient_name, message_text, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, seq
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

// AllConversations reads the whole table grouped by conversation.
func (s *SQLiteStore) AllConversations(ctx context.Context) (chat.Conversations, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_name, recipient_name, message_text, created_at
		FROM messages
		ORDER BY created_at, seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make(chat.Conversations)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		conversations[message.ConversationID] = append(conversations[message.ConversationID], message)
	}
	return conversations, rows.Err()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (chat.Message, error) {
	var (
		message   chat.Message
		recipient sql.NullString
	)
	err := row.Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderName,
		&recipient,
		&message.Text,
		&message.CreatedAt,
	)
	if err != nil {
		return chat.Message{}, err
	}
	message.RecipientName = recipient.String
	message.CreatedAt = message.CreatedAt.UTC()
	return message, nil
}
