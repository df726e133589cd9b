package handler

import (
	"context"
	"net/http"
	"time"

	chatModel "github.com/zhouzirui/z-widget/backend/internal/model/chat"
	"github.com/zhouzirui/z-widget/backend/internal/service/relay"
	"github.com/zhouzirui/z-widget/backend/pkg/utils"
)

type healthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Connections int    `json:"connections"`
	Timestamp   string `json:"timestamp"`
}

// healthHandler reports liveness and whether the message store answers.
func healthHandler(store chatModel.Store, engine *relay.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{
			Status:      "healthy",
			Store:       "ok",
			Connections: engine.Registry().Len(),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		status := http.StatusOK

		if err := store.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Store = err.Error()
			status = http.StatusServiceUnavailable
		}

		utils.RespondJSON(w, status, resp)
	}
}
