package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EventType tags every frame exchanged with a client.
type EventType string

// Inbound (client → relay).
const (
	TypeRegister    EventType = "register"
	TypeSendMessage EventType = "sendMessage"
	TypeTyping      EventType = "typing"
)

// Outbound (relay → client).
const (
	TypeAllConversations   EventType = "allConversations"
	TypeHistory            EventType = "history"
	TypeNewMessage         EventType = "newMessage"
	TypeTypingUpdate       EventType = "typingUpdate"
	TypeOnlineStatusUpdate EventType = "onlineStatusUpdate"
)

// Envelope is the wire shape of every frame.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound is one of RegisterEvent, SendMessageEvent or TypingEvent.
type Inbound interface {
	Type() EventType
}

type RegisterEvent struct {
	ConversationID string `json:"conversationId"`
	IsAdmin        bool   `json:"isAdmin"`
}

type SendMessageEvent struct {
	ConversationID string `json:"conversationId" validate:"required"`
	SenderName     string `json:"senderName" validate:"required"`
	MessageText    string `json:"messageText" validate:"required"`
	RecipientName  string `json:"recipientName,omitempty"`
}

type TypingEvent struct {
	ConversationID string `json:"conversationId" validate:"required"`
	IsTyping       bool   `json:"isTyping"`
}

// TypingUpdate is the payload of a typingUpdate frame.
type TypingUpdate struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

func (RegisterEvent) Type() EventType    { return TypeRegister }
func (SendMessageEvent) Type() EventType { return TypeSendMessage }
func (TypingEvent) Type() EventType      { return TypeTyping }

var validate = validator.New(validator.WithRequiredStructEnabled())

func (e *SendMessageEvent) normalize() error {
	e.ConversationID = strings.TrimSpace(e.ConversationID)
	e.SenderName = strings.TrimSpace(e.SenderName)
	e.MessageText = strings.TrimSpace(e.MessageText)
	e.RecipientName = strings.TrimSpace(e.RecipientName)
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func (e *TypingEvent) normalize() error {
	e.ConversationID = strings.TrimSpace(e.ConversationID)
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// DecodeInbound parses a client frame into its typed event. Payload
// validation happens when the event is applied, not here.
func DecodeInbound(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	payload := bytes.TrimSpace(env.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	switch env.Type {
	case TypeRegister:
		return decodeAs[RegisterEvent](payload)
	case TypeSendMessage:
		return decodeAs[SendMessageEvent](payload)
	case TypeTyping:
		return decodeAs[TypingEvent](payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

func decodeAs[T Inbound](payload []byte) (Inbound, error) {
	var evt T
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return evt, nil
}

// Encode builds an outbound frame.
func Encode(eventType EventType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: data})
}
