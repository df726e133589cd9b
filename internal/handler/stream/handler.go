package stream

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-widget/backend/internal/config"
	"github.com/zhouzirui/z-widget/backend/internal/middleware"
	"github.com/zhouzirui/z-widget/backend/internal/service/relay"
	"github.com/zhouzirui/z-widget/backend/pkg/utils"
)

const (
	defaultHeartbeat    = 15 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// Handler subscribes widgets that cannot hold a WebSocket to a conversation
// over Server-Sent Events. The stream is read-only: messages and typing
// signals go through the polling endpoints.
type Handler struct {
	engine *relay.Engine
	cfg    config.RelayConfig
	log    zerolog.Logger
}

// New creates a new stream handler
func New(engine *relay.Engine, cfg config.RelayConfig, logger zerolog.Logger) *Handler {
	if cfg.SSEHeartbeat <= 0 {
		cfg.SSEHeartbeat = defaultHeartbeat
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Handler{
		engine: engine,
		cfg:    cfg,
		log:    logger.With().Str("component", "sse").Logger(),
	}
}

// RegisterRoutes mounts the stream endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{conversationID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	conversationID := strings.TrimSpace(chi.URLParam(r, "conversationID"))
	if conversationID == "" {
		utils.RespondError(w, http.StatusBadRequest, "conversationID is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	outbox := relay.NewOutbox(h.cfg.SendBuffer)
	handle := h.engine.Accept(outbox, false)
	middleware.SetConnectionID(ctx, string(handle))
	defer func() {
		h.engine.Close(handle)
		outbox.Close()
	}()

	// The history frame is queued by Register, so failures can still be
	// answered with a status code.
	if err := h.engine.Register(ctx, handle, relay.RegisterEvent{ConversationID: conversationID}); err != nil {
		h.log.Warn().Err(err).Str("conversation", conversationID).Msg("stream registration failed")
		utils.RespondError(w, registerStatus(err), err.Error())
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := h.log.With().Str("connection", string(handle)).Str("conversation", conversationID).Logger()
	log.Debug().Msg("stream opened")

	rc := http.NewResponseController(w)
	ticker := time.NewTicker(h.cfg.SSEHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("stream closed by client")
			return
		case <-outbox.Done():
			log.Debug().Msg("stream dropped")
			return
		case frame := <-outbox.Frames():
			_ = rc.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := utils.WriteSSEData(w, flusher, frame); err != nil {
				log.Warn().Err(err).Msg("stream write failed")
				return
			}
		case t := <-ticker.C:
			_ = rc.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"time": t.UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}
	}
}

func registerStatus(err error) int {
	switch {
	case errors.Is(err, relay.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, relay.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
