package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type connectionKey struct{}

// SetConnectionID attaches the relay connection handle to the request log
// line. Long-lived /ws and /api/stream requests call it once accepted.
func SetConnectionID(ctx context.Context, id string) {
	if slot, ok := ctx.Value(connectionKey{}).(*string); ok {
		*slot = id
	}
}

// Logger returns a request logging middleware using zerolog. Server errors
// log at error level, client errors at warn.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	logger = logger.With().Str("component", "http").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			var connectionID string
			r = r.WithContext(context.WithValue(r.Context(), connectionKey{}, &connectionID))

			defer func() {
				status := ww.Status()

				event := logger.Info()
				switch {
				case status >= http.StatusInternalServerError:
					event = logger.Error()
				case status >= http.StatusBadRequest:
					event = logger.Warn()
				}
				if connectionID != "" {
					event = event.Str("connection", connectionID)
				}

				event.
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Dur("latency", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("remote_addr", r.RemoteAddr).
					Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
