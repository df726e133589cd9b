package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Inbound
		wantErr error
	}{
		{
			name:  "register participant",
			frame: `{"type":"register","payload":{"conversationId":"Alice"}}`,
			want:  RegisterEvent{ConversationID: "Alice"},
		},
		{
			name:  "register admin without conversation",
			frame: `{"type":"register","payload":{"isAdmin":true}}`,
			want:  RegisterEvent{IsAdmin: true},
		},
		{
			name:  "send message with recipient",
			frame: `{"type":"sendMessage","payload":{"conversationId":"Alice","senderName":"Manager","messageText":"hello","recipientName":"Alice"}}`,
			want:  SendMessageEvent{ConversationID: "Alice", SenderName: "Manager", MessageText: "hello", RecipientName: "Alice"},
		},
		{
			name:  "typing",
			frame: `{"type":"typing","payload":{"conversationId":"Alice","isTyping":true}}`,
			want:  TypingEvent{ConversationID: "Alice", IsTyping: true},
		},
		{
			name:  "missing payload decodes to zero value",
			frame: `{"type":"typing"}`,
			want:  TypingEvent{},
		},
		{
			name:    "not json",
			frame:   `hello`,
			wantErr: ErrMalformedEnvelope,
		},
		{
			name:    "unknown type",
			frame:   `{"type":"shout","payload":{}}`,
			wantErr: ErrUnknownEvent,
		},
		{
			name:    "payload of the wrong shape",
			frame:   `{"type":"typing","payload":{"conversationId":"Alice","isTyping":"yes"}}`,
			wantErr: ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.frame))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSendMessageEvent_Normalize(t *testing.T) {
	req := require.New(t)

	evt := SendMessageEvent{ConversationID: " Alice ", SenderName: " Alice", MessageText: "  hi  "}
	req.NoError(evt.normalize())
	req.Equal(SendMessageEvent{ConversationID: "Alice", SenderName: "Alice", MessageText: "hi"}, evt)

	for _, bad := range []SendMessageEvent{
		{ConversationID: "Alice", SenderName: "Alice", MessageText: " \t\n "},
		{SenderName: "Alice", MessageText: "hi"},
		{ConversationID: "Alice", MessageText: "hi"},
	} {
		req.ErrorIs(bad.normalize(), ErrInvalidPayload)
	}
}

func TestEncode(t *testing.T) {
	frame, err := Encode(TypeTypingUpdate, TypingUpdate{ConversationID: "Alice", IsTyping: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"typingUpdate","payload":{"conversationId":"Alice","isTyping":true}}`, string(frame))

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	require.Equal(t, TypeTypingUpdate, env.Type)
}
