package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config aggregates every setting of the service.
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Server ServerConfig `ignored:"true"`
	Store  StoreConfig  `ignored:"true"`
	Relay  RelayConfig  `ignored:"true"`
	Admin  AdminConfig  `ignored:"true"`
}

// Load reads the configuration from environment variables. Call
// godotenv.Load beforehand to pick up a .env file.
func Load() (*Config, error) {
	var cfg Config
	for _, target := range []any{&cfg, &cfg.Server, &cfg.Store, &cfg.Relay, &cfg.Admin} {
		if err := envconfig.Process("", target); err != nil {
			return nil, err
		}
	}

	server, err := loadServerConfig(cfg.Server)
	if err != nil {
		return nil, err
	}
	cfg.Server = server

	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port           string   `envconfig:"PORT" default:"8080"`
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	Addr string `ignored:"true"`
}

// loadServerConfig derives the listen address from PORT.
func loadServerConfig(server ServerConfig) (ServerConfig, error) {
	port := strings.TrimSpace(server.Port)
	if port == "" {
		port = "8080"
	}

	switch {
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	case strings.Contains(port, ":"):
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		server.Addr = port
	default:
		server.Addr = ":" + port
	}
	server.Port = port
	return server, nil
}

// StoreConfig selects and locates the message store.
type StoreConfig struct {
	Driver      string `envconfig:"STORE_DRIVER" default:"json"`
	JSONPath    string `envconfig:"STORE_JSON_PATH" default:"./data/messages.json"`
	SQLitePath  string `envconfig:"STORE_SQLITE_PATH" default:"./data/chat.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`
}

func (c *StoreConfig) validate() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))

	switch c.Driver {
	case DriverMemory, DriverJSON, DriverSQLite:
		return nil
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", c.Driver)
		}
		return nil
	case DriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for STORE_DRIVER=%s", c.Driver)
		}
		return nil
	default:
		return fmt.Errorf("invalid STORE_DRIVER value %q", c.Driver)
	}
}

// RelayConfig tunes the real-time transports.
type RelayConfig struct {
	SendBuffer    int           `envconfig:"RELAY_SEND_BUFFER" default:"64"`
	WriteTimeout  time.Duration `envconfig:"RELAY_WRITE_TIMEOUT" default:"10s"`
	SSEHeartbeat  time.Duration `envconfig:"RELAY_SSE_HEARTBEAT" default:"15s"`
	TypingTimeout time.Duration `envconfig:"TYPING_TIMEOUT" default:"8s"`
}

// AdminConfig holds the credential gating admin connections.
type AdminConfig struct {
	PasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
}

// Enabled reports whether an admin credential is configured at all.
func (c AdminConfig) Enabled() bool {
	return c.PasswordHash != ""
}
