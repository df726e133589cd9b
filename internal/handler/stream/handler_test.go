package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-widget/backend/internal/config"
	"github.com/zhouzirui/z-widget/backend/internal/service/relay"
	"github.com/zhouzirui/z-widget/backend/internal/store"
)

func setupServer(t *testing.T) (*httptest.Server, *relay.Engine) {
	t.Helper()
	engine := relay.NewEngine(store.NewMemoryStore(), zerolog.Nop())
	handler := New(engine, config.RelayConfig{SendBuffer: 16, SSEHeartbeat: time.Hour}, zerolog.Nop())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, engine
}

// nextData returns the payload of the next "data:" line.
func nextData(t *testing.T, lines <-chan string) relay.Envelope {
	t.Helper()
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended")
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var env relay.Envelope
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env))
			return env
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}
}

func TestStream_Delivers_History_And_New_Messages(t *testing.T) {
	req := require.New(t)
	srv, engine := setupServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Given an open stream for alice
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream/alice", nil)
	req.NoError(err)
	resp, err := http.DefaultClient.Do(httpReq)
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	env := nextData(t, lines)
	req.Equal(relay.TypeHistory, env.Type)
	req.JSONEq(`[]`, string(env.Payload))
	req.Equal(1, engine.Presence().Count("alice"))

	// When a message is sent to the conversation
	_, err = engine.SendMessage(ctx, relay.SendMessageEvent{
		ConversationID: "alice",
		SenderName:     "Manager",
		MessageText:    "hi there",
		RecipientName:  "alice",
	})
	req.NoError(err)

	// Then it is streamed
	env = nextData(t, lines)
	req.Equal(relay.TypeNewMessage, env.Type)
	req.Contains(string(env.Payload), `"hi there"`)

	// And closing the stream removes the presence
	cancel()
	req.Eventually(func() bool {
		return engine.Presence().Count("alice") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegisterStatus(t *testing.T) {
	req := require.New(t)
	req.Equal(http.StatusBadRequest, registerStatus(fmt.Errorf("%w: empty", relay.ErrInvalidPayload)))
	req.Equal(http.StatusServiceUnavailable, registerStatus(fmt.Errorf("%w: down", relay.ErrStoreUnavailable)))
	req.Equal(http.StatusInternalServerError, registerStatus(errors.New("boom")))
}
