package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/zhouzirui/z-widget/backend/internal/model/chat"
)

const conversationsKey = "chat:conversations"

// RedisStore keeps each conversation as a Redis list of JSON-encoded
// messages, plus a set indexing the known conversation identities.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// conversationKey returns the key for a conversation's message list.
func conversationKey(conversationID string) string {
	return fmt.Sprintf("chat:conversation:%s:messages", conversationID)
}

// AddMessage appends the encoded message to the conversation list. RPUSH
// order is the insertion order.
func (s *RedisStore) AddMessage(ctx context.Context, conversationID, senderName, text, recipientName string) (chat.Message, error) {
	message := newMessage(conversationID, senderName, text, recipientName)

	data, err := json.Marshal(message)
	if err != nil {
		return chat.Message{}, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, conversationKey(conversationID), data)
		pipe.SAdd(ctx, conversationsKey, conversationID)
		return nil
	})
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// MessagesForConversation returns one conversation in insertion order.
func (s *RedisStore) MessagesForConversation(ctx context.Context, conversationID string) ([]chat.Message, error) {
	raw, err := s.client.LRange(ctx, conversationKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeMessages(raw)
}

// AllConversations loads every indexed conversation.
func (s *RedisStore) AllConversations(ctx context.Context) (chat.Conversations, error) {
	ids, err := s.client.SMembers(ctx, conversationsKey).Result()
	if err != nil {
		return nil, err
	}

	pipe := s.client.Pipeline()
	cmds := lo.Map(ids, func(id string, _ int) *redis.StringSliceCmd {
		return pipe.LRange(ctx, conversationKey(id), 0, -1)
	})
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
	}

	conversations := make(chat.Conversations, len(ids))
	for i, id := range ids {
		messages, err := decodeMessages(cmds[i].Val())
		if err != nil {
			return nil, err
		}
		if len(messages) > 0 {
			conversations[id] = messages
		}
	}
	return conversations, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeMessages(raw []string) ([]chat.Message, error) {
	messages := make([]chat.Message, 0, len(raw))
	for _, item := range raw {
		var message chat.Message
		if err := json.Unmarshal([]byte(item), &message); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		messages = append(messages, message)
	}
	return messages, nil
}
