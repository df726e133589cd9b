package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-widget/backend/internal/config"
	"github.com/zhouzirui/z-widget/backend/internal/model/chat"
)

// ErrUnknownDriver is returned by Open for an unsupported STORE_DRIVER.
var ErrUnknownDriver = errors.New("unknown store driver")

// Open builds the message store selected by the configuration and wraps it
// with latency instrumentation.
func Open(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (chat.Store, error) {
	var (
		s   chat.Store
		err error
	)

	switch cfg.Driver {
	case config.DriverMemory:
		s = NewMemoryStore()
	case config.DriverJSON:
		s, err = NewJSONFileStore(cfg.JSONPath)
	case config.DriverSQLite:
		s, err = NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		s, err = NewPostgresStore(ctx, cfg.DatabaseURL)
	case config.DriverRedis:
		s, err = NewRedisStore(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	logger.Info().Str("component", "store").Str("driver", cfg.Driver).Msg("message store ready")
	return Instrument(s, cfg.Driver), nil
}

// newMessage stamps the store-assigned fields of a message.
func newMessage(conversationID, senderName, text, recipientName string) chat.Message {
	now := time.Now().UTC()
	return chat.Message{
		ID:             ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		ConversationID: conversationID,
		SenderName:     senderName,
		RecipientName:  strings.TrimSpace(recipientName),
		Text:           text,
		CreatedAt:      now,
	}
}
