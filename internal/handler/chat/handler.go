package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-widget/backend/internal/middleware"
	"github.com/zhouzirui/z-widget/backend/internal/model/chat"
	"github.com/zhouzirui/z-widget/backend/internal/service/relay"
	"github.com/zhouzirui/z-widget/backend/internal/service/typing"
	"github.com/zhouzirui/z-widget/backend/pkg/utils"
)

// Handler serves the polling variant of the widget: plain HTTP endpoints for
// sending messages, reading history and exchanging typing signals. Messages
// posted here still reach live WebSocket and SSE subscribers.
type Handler struct {
	engine  *relay.Engine
	store   chat.Store
	tracker *typing.Tracker
	guard   *middleware.AdminGuard
	log     zerolog.Logger
}

// New creates the polling chat handler.
func New(engine *relay.Engine, store chat.Store, tracker *typing.Tracker, guard *middleware.AdminGuard, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:  engine,
		store:   store,
		tracker: tracker,
		guard:   guard,
		log:     logger.With().Str("component", "polling").Logger(),
	}
}

// RegisterRoutes registers the polling routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/message", h.handlePostMessage)
	r.Get("/messages", h.handleGetMessages)
	r.Post("/typing", h.handleTyping)
	r.Get("/status", h.handleStatus)

	r.Group(func(admin chi.Router) {
		admin.Use(h.guard.Require)
		admin.Get("/conversations", h.handleConversations)
		admin.Get("/presence", h.handlePresence)
	})
}

type postMessageRequest struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
}

// handlePostMessage stores a message. A recipient marks a manager reply and
// selects the conversation; otherwise the sender's own conversation is used.
func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var payload postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	recipient := strings.TrimSpace(payload.Recipient)
	conversationID := recipient
	if conversationID == "" {
		conversationID = strings.TrimSpace(payload.Name)
	}

	message, err := h.engine.SendMessage(r.Context(), relay.SendMessageEvent{
		ConversationID: conversationID,
		SenderName:     payload.Name,
		MessageText:    payload.Message,
		RecipientName:  recipient,
	})
	switch {
	case errors.Is(err, relay.ErrInvalidPayload):
		utils.RespondError(w, http.StatusBadRequest, "name and message are required")
		return
	case err != nil:
		h.log.Error().Err(err).Str("conversation", conversationID).Msg("failed to save message")
		utils.RespondError(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, message)
}

// handleGetMessages returns one conversation, or every conversation for an
// admin when no user is given.
func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		if !h.guard.Verify(r) {
			utils.RespondError(w, http.StatusUnauthorized, "admin credential required")
			return
		}
		h.handleConversations(w, r)
		return
	}

	messages, err := h.store.MessagesForConversation(r.Context(), user)
	if err != nil {
		h.log.Error().Err(err).Str("conversation", user).Msg("failed to read messages")
		utils.RespondError(w, http.StatusInternalServerError, "failed to read messages")
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleConversations(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.AllConversations(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read conversations")
		utils.RespondError(w, http.StatusInternalServerError, "failed to read messages")
		return
	}
	if all == nil {
		all = chat.Conversations{}
	}
	utils.RespondJSON(w, http.StatusOK, all)
}

func (h *Handler) handlePresence(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.engine.Presence().Snapshot())
}

// handleTyping records a typing signal addressed to a conversation and
// relays it to live subscribers.
func (h *Handler) handleTyping(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Recipient string `json:"recipient"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	recipient := strings.TrimSpace(payload.Recipient)
	if recipient == "" {
		utils.RespondError(w, http.StatusBadRequest, "invalid recipient")
		return
	}

	h.tracker.Mark(recipient)
	if err := h.engine.RelayTyping(relay.TypingEvent{ConversationID: recipient, IsTyping: true}); err != nil {
		h.log.Warn().Err(err).Str("conversation", recipient).Msg("typing relay failed")
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		utils.RespondError(w, http.StatusBadRequest, "user parameter is required")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]bool{"isTyping": h.tracker.IsTyping(user)})
}
