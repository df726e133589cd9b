package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/z-widget/backend/pkg/utils"
)

// AdminKeyHeader carries the admin credential on plain HTTP requests.
// Browsers cannot set headers on a WebSocket handshake, so the "key" query
// parameter is accepted as well.
const AdminKeyHeader = "X-Admin-Key"

// AdminGuard checks the admin credential against a bcrypt hash.
type AdminGuard struct {
	hash []byte
}

// NewAdminGuard builds a guard. With an empty hash nobody is admitted.
func NewAdminGuard(passwordHash string) *AdminGuard {
	return &AdminGuard{hash: []byte(passwordHash)}
}

// Verify reports whether the request presents the admin credential.
func (g *AdminGuard) Verify(r *http.Request) bool {
	if len(g.hash) == 0 {
		return false
	}

	key := r.Header.Get(AdminKeyHeader)
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	if key == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword(g.hash, []byte(key)) == nil
}

// Require rejects requests without the admin credential.
func (g *AdminGuard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Verify(r) {
			utils.RespondError(w, http.StatusUnauthorized, "admin credential required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
