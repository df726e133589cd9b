package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-widget/backend/internal/config"
	"github.com/zhouzirui/z-widget/backend/internal/model/chat"
)

// runStoreContract exercises the behaviour every driver must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) chat.Store) {
	t.Run("empty store", func(t *testing.T) {
		req := require.New(t)
		s := newStore(t)
		ctx := context.Background()

		messages, err := s.MessagesForConversation(ctx, "nobody")
		req.NoError(err)
		req.Empty(messages)

		all, err := s.AllConversations(ctx)
		req.NoError(err)
		req.Empty(all)

		req.NoError(s.Ping(ctx))
	})

	t.Run("add then read back in order", func(t *testing.T) {
		req := require.New(t)
		s := newStore(t)
		ctx := context.Background()

		first, err := s.AddMessage(ctx, "alice", "alice", "hi", "")
		req.NoError(err)
		second, err := s.AddMessage(ctx, "alice", "Manager", "hello", "alice")
		req.NoError(err)
		_, err = s.AddMessage(ctx, "bob", "bob", "yo", "")
		req.NoError(err)

		req.NotEmpty(first.ID)
		req.NotEqual(first.ID, second.ID)
		req.Equal("alice", second.RecipientName)
		req.Empty(first.RecipientName)

		messages, err := s.MessagesForConversation(ctx, "alice")
		req.NoError(err)
		req.Len(messages, 2)
		req.Equal(first.ID, messages[0].ID)
		req.Equal(second.ID, messages[1].ID)
		req.Equal("hello", messages[1].Text)
		req.Equal("alice", messages[1].RecipientName)
		req.WithinDuration(second.CreatedAt, messages[1].CreatedAt, time.Millisecond)

		all, err := s.AllConversations(ctx)
		req.NoError(err)
		req.Len(all, 2)
		req.Len(all["alice"], 2)
		req.Len(all["bob"], 1)
	})

	t.Run("concurrent appends keep every message", func(t *testing.T) {
		req := require.New(t)
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.AddMessage(ctx, "carol", "carol", fmt.Sprintf("m%d", i), "")
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		messages, err := s.MessagesForConversation(ctx, "carol")
		req.NoError(err)
		req.Len(messages, 20)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) chat.Store { return NewMemoryStore() })
}

func TestMemoryStore_Returns_Copies(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.AddMessage(ctx, "alice", "alice", "hi", "")
	req.NoError(err)

	messages, err := s.MessagesForConversation(ctx, "alice")
	req.NoError(err)
	messages[0].Text = "changed"

	all, err := s.AllConversations(ctx)
	req.NoError(err)
	all["alice"][0].Text = "changed too"

	messages, err = s.MessagesForConversation(ctx, "alice")
	req.NoError(err)
	req.Equal("hi", messages[0].Text)
}

func TestJSONFileStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) chat.Store {
		s, err := NewJSONFileStore(filepath.Join(t.TempDir(), "data", "messages.json"))
		require.NoError(t, err)
		return s
	})
}

func TestJSONFileStore_Survives_Restart(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "messages.json")
	ctx := context.Background()

	// Given a store with one message
	s, err := NewJSONFileStore(path)
	req.NoError(err)
	saved, err := s.AddMessage(ctx, "alice", "alice", "remember me", "")
	req.NoError(err)

	// When it is reopened
	reopened, err := NewJSONFileStore(path)
	req.NoError(err)

	// Then the message is still there
	messages, err := reopened.MessagesForConversation(ctx, "alice")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(saved.ID, messages[0].ID)
	req.Equal("remember me", messages[0].Text)
	req.True(saved.CreatedAt.Equal(messages[0].CreatedAt))
}

func TestJSONFileStore_Loads_Snake_Case_File(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "messages.json")
	ctx := context.Background()

	// Given a file in the Node widget server layout
	legacy := `{
  "alice": [
    {
      "id": "1718000000000abc123xyz",
      "conversation_id": "alice",
      "sender_name": "alice",
      "recipient_name": null,
      "message_text": "hello?",
      "timestamp": "2024-06-10T06:13:20.000Z"
    },
    {
      "id": "1718000005000def456uvw",
      "conversation_id": "alice",
      "sender_name": "Manager",
      "recipient_name": "alice",
      "message_text": "hi, how can I help?",
      "timestamp": "2024-06-10T06:13:25.000Z"
    }
  ]
}`
	req.NoError(os.WriteFile(path, []byte(legacy), 0o644))

	// When the store opens it
	s, err := NewJSONFileStore(path)
	req.NoError(err)

	// Then every field is carried over
	messages, err := s.MessagesForConversation(ctx, "alice")
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("1718000000000abc123xyz", messages[0].ID)
	req.Equal("alice", messages[0].ConversationID)
	req.Equal("alice", messages[0].SenderName)
	req.Empty(messages[0].RecipientName)
	req.Equal("hello?", messages[0].Text)
	req.True(time.Date(2024, 6, 10, 6, 13, 20, 0, time.UTC).Equal(messages[0].CreatedAt))
	req.Equal("Manager", messages[1].SenderName)
	req.Equal("alice", messages[1].RecipientName)
	req.Equal("hi, how can I help?", messages[1].Text)

	// And the next write keeps the old messages in the current layout
	_, err = s.AddMessage(ctx, "alice", "alice", "thanks", "")
	req.NoError(err)
	reopened, err := NewJSONFileStore(path)
	req.NoError(err)
	messages, err = reopened.MessagesForConversation(ctx, "alice")
	req.NoError(err)
	req.Len(messages, 3)
	req.Equal("hello?", messages[0].Text)

	data, err := os.ReadFile(path)
	req.NoError(err)
	req.NotContains(string(data), "message_text")
}

func TestJSONFileStore_Rejects_Corrupt_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewJSONFileStore(path)
	require.Error(t, err)
}

func TestJSONFileStore_Write_Failure_Leaves_Cache(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	s, err := NewJSONFileStore(filepath.Join(dir, "messages.json"))
	req.NoError(err)
	ctx := context.Background()

	// Point the store at a directory that no longer exists
	s.path = filepath.Join(dir, "gone", "messages.json")

	_, err = s.AddMessage(ctx, "alice", "alice", "lost", "")
	req.Error(err)

	messages, err := s.MessagesForConversation(ctx, "alice")
	req.NoError(err)
	req.Empty(messages)
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) chat.Store {
		s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestPostgresStore(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	runStoreContract(t, func(t *testing.T) chat.Store {
		s, err := NewPostgresStore(context.Background(), databaseURL)
		require.NoError(t, err)
		_, err = s.pool.Exec(context.Background(), "TRUNCATE messages")
		require.NoError(t, err)
		t.Cleanup(s.pool.Close)
		return s
	})
}

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	runStoreContract(t, func(t *testing.T) chat.Store {
		s, err := NewRedisStore(context.Background(), redisURL)
		require.NoError(t, err)
		require.NoError(t, s.client.FlushDB(context.Background()).Err())
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "chat.db")}, zerolog.Nop())
	req.NoError(err)
	defer s.Close()

	_, err = s.AddMessage(ctx, "alice", "alice", "hi", "")
	req.NoError(err)

	_, err = Open(ctx, config.StoreConfig{Driver: "cassandra"}, zerolog.Nop())
	req.ErrorIs(err, ErrUnknownDriver)
}
