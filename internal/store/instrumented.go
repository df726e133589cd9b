package store

import (
	"context"
	"time"

	"github.com/zhouzirui/z-widget/backend/internal/metrics"
	"github.com/zhouzirui/z-widget/backend/internal/model/chat"
)

type instrumented struct {
	chat.Store
	driver string
}

// Instrument records latency and failures of every log operation.
func Instrument(s chat.Store, driver string) chat.Store {
	return &instrumented{Store: s, driver: driver}
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	metrics.StoreLatency.WithLabelValues(s.driver, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreErrors.WithLabelValues(s.driver, op).Inc()
	}
}

func (s *instrumented) AddMessage(ctx context.Context, conversationID, senderName, text, recipientName string) (msg chat.Message, err error) {
	start := time.Now()
	defer func() { s.observe("add", start, err) }()
	return s.Store.AddMessage(ctx, conversationID, senderName, text, recipientName)
}

func (s *instrumented) MessagesForConversation(ctx context.Context, conversationID string) (msgs []chat.Message, err error) {
	start := time.Now()
	defer func() { s.observe("history", start, err) }()
	return s.Store.MessagesForConversation(ctx, conversationID)
}

func (s *instrumented) AllConversations(ctx context.Context) (all chat.Conversations, err error) {
	start := time.Now()
	defer func() { s.observe("all", start, err) }()
	return s.Store.AllConversations(ctx)
}
