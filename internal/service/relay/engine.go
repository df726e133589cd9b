package relay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/zhouzirui/z-widget/backend/internal/metrics"
	"github.com/zhouzirui/z-widget/backend/internal/model/chat"
)

// Engine applies inbound events from every transport against the message
// store and presence set, and fans the resulting frames out to the
// registered connections.
//
// Lock order is lifecycle → gate → per-conversation lock. Register and
// Close hold lifecycle so presence broadcasts follow registry order.
// SendMessage holds gate shared plus its conversation lock across
// persist-then-broadcast; register holds gate (exclusive for admins) while
// reading its snapshot and finalizing, so a new connection never misses or
// pre-receives a message relative to that snapshot. Typing bookkeeping and
// registry removal share typingMu, taken after lifecycle.
type Engine struct {
	store    chat.Store
	registry *Registry
	presence *Presence
	log      zerolog.Logger

	lifecycle     sync.Mutex
	gate          sync.RWMutex
	conversations keyedMutex

	// typing holds the conversations each connection last reported as
	// typing in. typingMu orders its writes against registry removal.
	typingMu sync.Mutex
	typing   map[Handle]map[string]struct{}
}

// NewEngine creates an engine over the given store.
func NewEngine(store chat.Store, logger zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		registry: NewRegistry(),
		presence: NewPresence(),
		log:      logger.With().Str("component", "relay").Logger(),
		typing:   make(map[Handle]map[string]struct{}),
	}
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Presence() *Presence { return e.presence }

// Accept registers a new transport connection in the Unregistered state.
// adminPermitted is the transport's verdict on the admin credential.
func (e *Engine) Accept(sink Sink, adminPermitted bool) Handle {
	handle := e.registry.Add(sink, adminPermitted)
	e.log.Debug().Str("connection", string(handle)).Bool("admin_permitted", adminPermitted).Msg("connection accepted")
	return handle
}

// Handle decodes and applies one inbound frame. Failures are logged and the
// frame is dropped; the connection stays open.
func (e *Engine) Handle(ctx context.Context, handle Handle, frame []byte) {
	evt, err := DecodeInbound(frame)
	if err != nil {
		e.drop(handle, "", err)
		return
	}
	metrics.EventsReceived.WithLabelValues(string(evt.Type())).Inc()

	switch evt := evt.(type) {
	case RegisterEvent:
		err = e.Register(ctx, handle, evt)
	case SendMessageEvent:
		_, err = e.SendMessage(ctx, evt)
	case TypingEvent:
		err = e.Typing(ctx, handle, evt)
	}
	if err != nil {
		e.drop(handle, evt.Type(), err)
	}
}

func (e *Engine) drop(handle Handle, eventType EventType, err error) {
	reason := dropReason(err)
	metrics.EventsDropped.WithLabelValues(reason).Inc()

	level := zerolog.DebugLevel
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrAlreadyRegistered) || errors.Is(err, ErrAdminNotPermitted) {
		level = zerolog.WarnLevel
	}
	e.log.WithLevel(level).
		Err(err).
		Str("connection", string(handle)).
		Str("event", string(eventType)).
		Str("reason", reason).
		Msg("inbound event dropped")
}

// Register finalizes a connection as admin or participant and pushes its
// initial state.
func (e *Engine) Register(ctx context.Context, handle Handle, evt RegisterEvent) error {
	conversationID := strings.TrimSpace(evt.ConversationID)

	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	record, ok := e.registry.Lookup(handle)
	if !ok {
		return ErrUnknownConnection
	}
	if record.Registered() {
		return ErrAlreadyRegistered
	}

	if evt.IsAdmin {
		if !record.AdminPermitted {
			return ErrAdminNotPermitted
		}
		return e.registerAdmin(ctx, record, conversationID)
	}

	if conversationID == "" {
		return fmt.Errorf("%w: conversationId is required", ErrInvalidPayload)
	}
	return e.registerParticipant(ctx, record, conversationID)
}

func (e *Engine) registerAdmin(ctx context.Context, record Record, conversationID string) error {
	e.gate.Lock()
	all, err := e.store.AllConversations(ctx)
	if err != nil {
		e.gate.Unlock()
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if all == nil {
		all = make(chat.Conversations)
	}
	if err := e.registry.Finalize(record.Handle, RoleAdmin, conversationID); err != nil {
		e.gate.Unlock()
		return err
	}
	e.send(record, TypeAllConversations, all)
	e.gate.Unlock()

	e.send(record, TypeOnlineStatusUpdate, e.presence.Snapshot())

	e.log.Info().Str("connection", string(record.Handle)).Int("conversations", len(all)).Msg("admin registered")
	return nil
}

func (e *Engine) registerParticipant(ctx context.Context, record Record, conversationID string) error {
	e.gate.RLock()
	unlock := e.conversations.Lock(conversationID)

	history, err := e.store.MessagesForConversation(ctx, conversationID)
	if err != nil {
		unlock()
		e.gate.RUnlock()
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if history == nil {
		history = make([]chat.Message, 0)
	}

	err = e.registry.Finalize(record.Handle, RoleParticipant, conversationID)
	if err == nil {
		e.send(record, TypeHistory, history)
	}
	unlock()
	e.gate.RUnlock()
	if err != nil {
		return err
	}

	if e.presence.Connected(conversationID) {
		e.broadcastPresence()
	}

	e.log.Info().
		Str("connection", string(record.Handle)).
		Str("conversation", conversationID).
		Int("history", len(history)).
		Msg("participant registered")
	return nil
}

// SendMessage validates, persists and then broadcasts a message to the
// conversation's participants and every admin. Nothing is broadcast when the
// store rejects the write.
func (e *Engine) SendMessage(ctx context.Context, evt SendMessageEvent) (chat.Message, error) {
	if err := evt.normalize(); err != nil {
		return chat.Message{}, err
	}

	e.gate.RLock()
	defer e.gate.RUnlock()
	unlock := e.conversations.Lock(evt.ConversationID)
	defer unlock()

	message, err := e.store.AddMessage(ctx, evt.ConversationID, evt.SenderName, evt.MessageText, evt.RecipientName)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	metrics.MessagesRelayed.Inc()
	e.broadcast(conversationAudience(message.ConversationID), TypeNewMessage, message)
	return message, nil
}

// Typing relays a typing signal from a registered connection.
func (e *Engine) Typing(_ context.Context, handle Handle, evt TypingEvent) error {
	if err := evt.normalize(); err != nil {
		return err
	}

	e.typingMu.Lock()
	record, ok := e.registry.Lookup(handle)
	if !ok || !record.Registered() {
		e.typingMu.Unlock()
		return ErrNotRegistered
	}
	e.trackTyping(handle, evt.ConversationID, evt.IsTyping)
	e.typingMu.Unlock()

	return e.RelayTyping(evt)
}

// trackTyping updates the typing set of a connection. Callers hold typingMu.
func (e *Engine) trackTyping(handle Handle, conversationID string, isTyping bool) {
	conversations := e.typing[handle]
	if isTyping {
		if conversations == nil {
			conversations = make(map[string]struct{})
			e.typing[handle] = conversations
		}
		conversations[conversationID] = struct{}{}
		return
	}

	delete(conversations, conversationID)
	if len(conversations) == 0 {
		delete(e.typing, handle)
	}
}

// RelayTyping broadcasts a typing signal without a source connection. It is
// the entry point for ingress paths that keep no live connection.
func (e *Engine) RelayTyping(evt TypingEvent) error {
	if err := evt.normalize(); err != nil {
		return err
	}

	e.broadcast(conversationAudience(evt.ConversationID), TypeTypingUpdate, TypingUpdate{
		ConversationID: evt.ConversationID,
		IsTyping:       evt.IsTyping,
	})
	return nil
}

// Close removes a connection. It is safe to call more than once and for
// connections that never registered.
func (e *Engine) Close(handle Handle) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.typingMu.Lock()
	typingIn := lo.Keys(e.typing[handle])
	delete(e.typing, handle)
	record, ok := e.registry.Remove(handle)
	e.typingMu.Unlock()
	if !ok {
		return
	}

	if record.Role == RoleParticipant && e.presence.Disconnected(record.ConversationID) {
		e.broadcastPresence()
	}

	// A connection that vanished mid-typing would leave peers with a stuck
	// indicator.
	slices.Sort(typingIn)
	for _, conversationID := range typingIn {
		e.broadcast(conversationAudience(conversationID), TypeTypingUpdate, TypingUpdate{ConversationID: conversationID})
	}

	e.log.Debug().
		Str("connection", string(handle)).
		Str("role", record.Role.String()).
		Str("conversation", record.ConversationID).
		Msg("connection closed")
}

// broadcastPresence pushes the present set to every admin. Callers hold
// lifecycle.
func (e *Engine) broadcastPresence() {
	e.broadcast(adminAudience, TypeOnlineStatusUpdate, e.presence.Snapshot())
}

// broadcast delivers one frame to every matching open connection. A failed
// recipient is logged and skipped.
func (e *Engine) broadcast(match func(Record) bool, eventType EventType, payload any) {
	frame, err := Encode(eventType, payload)
	if err != nil {
		e.log.Error().Err(err).Str("event", string(eventType)).Msg("encode outbound frame")
		return
	}

	for _, record := range e.registry.Matching(match) {
		e.deliver(record, eventType, frame)
	}
}

func (e *Engine) send(record Record, eventType EventType, payload any) {
	frame, err := Encode(eventType, payload)
	if err != nil {
		e.log.Error().Err(err).Str("event", string(eventType)).Msg("encode outbound frame")
		return
	}
	e.deliver(record, eventType, frame)
}

func (e *Engine) deliver(record Record, eventType EventType, frame []byte) {
	if record.Sink.Closed() {
		return
	}
	if err := record.Sink.Send(frame); err != nil {
		metrics.SendFailures.Inc()
		e.log.Warn().
			Err(err).
			Str("connection", string(record.Handle)).
			Str("event", string(eventType)).
			Msg("relay send failed")
	}
}

// conversationAudience matches the participants of a conversation and
// every admin.
func conversationAudience(conversationID string) func(Record) bool {
	return func(r Record) bool {
		return r.Role == RoleAdmin || (r.Role == RoleParticipant && r.ConversationID == conversationID)
	}
}

func adminAudience(r Record) bool { return r.Role == RoleAdmin }
