package ws

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/zhouzirui/z-widget/backend/internal/config"
	"github.com/zhouzirui/z-widget/backend/internal/middleware"
	"github.com/zhouzirui/z-widget/backend/internal/service/relay"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 << 10

	defaultWriteTimeout = 10 * time.Second
)

// Handler upgrades widget and dashboard connections and feeds their frames
// to the relay engine.
type Handler struct {
	engine   *relay.Engine
	guard    *middleware.AdminGuard
	cfg      config.RelayConfig
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// New creates the WebSocket handler.
func New(engine *relay.Engine, guard *middleware.AdminGuard, allowedOrigins []string, cfg config.RelayConfig, logger zerolog.Logger) *Handler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Handler{
		engine: engine,
		guard:  guard,
		cfg:    cfg,
		log:    logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// connection is the relay sink of one socket. Frames are queued in the
// outbox and written by writePump only.
type connection struct {
	*relay.Outbox
	conn *websocket.Conn
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	adminPermitted := h.guard.Verify(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	c := &connection{Outbox: relay.NewOutbox(h.cfg.SendBuffer), conn: conn}
	handle := h.engine.Accept(c, adminPermitted)
	middleware.SetConnectionID(r.Context(), string(handle))

	log := h.log.With().Str("connection", string(handle)).Logger()
	log.Debug().Str("remote_addr", r.RemoteAddr).Bool("admin_permitted", adminPermitted).Msg("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writePump(c, log)
	h.readLoop(ctx, handle, c, log)

	h.engine.Close(handle)
	c.Close()
	log.Debug().Msg("connection closed")
}

func (h *Handler) readLoop(ctx context.Context, handle relay.Handle, c *connection, log zerolog.Logger) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("read error")
			}
			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.engine.Handle(ctx, handle, frame)
	}
}

// writePump owns all writes to the socket. It exits when the outbox closes or
// a write fails, and closing the socket unblocks readLoop.
func (h *Handler) writePump(c *connection, log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.Frames():
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Done():
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteTimeout),
			)
			return
		}
	}
}

// originChecker admits any origin when the list contains "*". Requests
// without an Origin header come from non-browser clients and are admitted.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if lo.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && lo.Contains(allowed, u.Host)
	}
}
