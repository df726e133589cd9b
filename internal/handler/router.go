package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-widget/backend/internal/config"
	"github.com/zhouzirui/z-widget/backend/internal/handler/chat"
	"github.com/zhouzirui/z-widget/backend/internal/handler/stream"
	"github.com/zhouzirui/z-widget/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/z-widget/backend/internal/middleware"
	chatModel "github.com/zhouzirui/z-widget/backend/internal/model/chat"
	"github.com/zhouzirui/z-widget/backend/internal/service/relay"
	"github.com/zhouzirui/z-widget/backend/internal/service/typing"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, store chatModel.Store, engine *relay.Engine, tracker *typing.Tracker, guard *middlewarePkg.AdminGuard, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middlewarePkg.Metrics)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middlewarePkg.AdminKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Create handlers
	wsHandler := ws.New(engine, guard, cfg.Server.AllowedOrigins, cfg.Relay, logger)
	streamHandler := stream.New(engine, cfg.Relay, logger)
	chatHandler := chat.New(engine, store, tracker, guard, logger)

	r.Get("/health", healthHandler(store, engine))
	r.Handle("/metrics", promhttp.Handler())

	wsHandler.RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		streamHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
	})

	return r
}
