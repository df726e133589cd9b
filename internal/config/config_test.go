package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Load()
	req.NoError(err)

	req.Equal("development", cfg.Env)
	req.True(cfg.IsDevelopment())
	req.Equal(":8080", cfg.Server.Addr)
	req.Equal([]string{"*"}, cfg.Server.AllowedOrigins)
	req.Equal(DriverJSON, cfg.Store.Driver)
	req.Equal("./data/messages.json", cfg.Store.JSONPath)
	req.Equal(64, cfg.Relay.SendBuffer)
	req.Equal(10*time.Second, cfg.Relay.WriteTimeout)
	req.Equal(15*time.Second, cfg.Relay.SSEHeartbeat)
	req.Equal(8*time.Second, cfg.Relay.TypingTimeout)
	req.False(cfg.Admin.Enabled())
}

func TestLoad_From_Environment(t *testing.T) {
	req := require.New(t)

	t.Setenv("ENV", "production")
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.com,https://admin.example.com")
	t.Setenv("STORE_DRIVER", " SQLite ")
	t.Setenv("STORE_SQLITE_PATH", "/tmp/chat.db")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuu")
	t.Setenv("RELAY_SEND_BUFFER", "8")
	t.Setenv("TYPING_TIMEOUT", "3s")

	cfg, err := Load()
	req.NoError(err)

	req.False(cfg.IsDevelopment())
	req.Equal("127.0.0.1:9000", cfg.Server.Addr)
	req.Equal([]string{"https://shop.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)
	req.Equal(DriverSQLite, cfg.Store.Driver)
	req.Equal("/tmp/chat.db", cfg.Store.SQLitePath)
	req.True(cfg.Admin.Enabled())
	req.Equal(8, cfg.Relay.SendBuffer)
	req.Equal(3*time.Second, cfg.Relay.TypingTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "mongo"}},
		{name: "postgres without url", env: map[string]string{"STORE_DRIVER": "postgres"}},
		{name: "redis without url", env: map[string]string{"STORE_DRIVER": "redis"}},
		{name: "port with space", env: map[string]string{"PORT": "80 80"}},
		{name: "bad duration", env: map[string]string{"RELAY_WRITE_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
