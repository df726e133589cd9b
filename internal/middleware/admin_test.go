package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newGuard(t *testing.T, password string) *AdminGuard {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAdminGuard(string(hash))
}

func TestAdminGuard_Verify(t *testing.T) {
	guard := newGuard(t, "s3cret")

	tests := []struct {
		name   string
		header string
		query  string
		want   bool
	}{
		{name: "header", header: "s3cret", want: true},
		{name: "query parameter", query: "?key=s3cret", want: true},
		{name: "wrong key", header: "guess", want: false},
		{name: "no key", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(AdminKeyHeader, tt.header)
			}
			require.Equal(t, tt.want, guard.Verify(req))
		})
	}
}

func TestAdminGuard_Without_Hash_Admits_Nobody(t *testing.T) {
	guard := NewAdminGuard("")
	req := httptest.NewRequest(http.MethodGet, "/ws?key=anything", nil)
	require.False(t, guard.Verify(req))
}

func TestAdminGuard_Require(t *testing.T) {
	guard := newGuard(t, "s3cret")
	handler := guard.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set(AdminKeyHeader, "s3cret")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNoContent, resp.Code)
}
