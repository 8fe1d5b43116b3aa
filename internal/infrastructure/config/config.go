package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Session  SessionConfig
	Google   GoogleConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Realtime RealtimeConfig
}

type SessionConfig struct {
	JWTSecret  string        `env:"JWT_SECRET, required"`
	TTL        time.Duration `env:"SESSION_TTL,    default=168h"`
	CookieName string        `env:"SESSION_COOKIE, default=session"`
	Issuer     string        `env:"TOKEN_ISSUER,   default=backoffice"`
}

type GoogleConfig struct {
	ClientID string `env:"GOOGLE_CLIENT_ID"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=backoffice"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type RealtimeConfig struct {
	PingInterval   time.Duration `env:"WS_PING_INTERVAL, default=25s"`
	PongWait       time.Duration `env:"WS_PONG_WAIT,     default=60s"`
	WriteWait      time.Duration `env:"WS_WRITE_WAIT,    default=10s"`
	SendBuffer     int           `env:"WS_SEND_BUFFER,   default=64"`
	AllowedOrigins []string      `env:"WS_ALLOWED_ORIGINS"`
}

// IsProduction reports whether the service runs with production settings
// (JSON logs, secure cookies).
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through l and validates it.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Session.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes")
	}
	if c.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.Realtime.PingInterval >= c.Realtime.PongWait {
		return errors.New("WS_PING_INTERVAL must be shorter than WS_PONG_WAIT")
	}
	if c.IsProduction() && c.Google.ClientID == "" {
		return errors.New("GOOGLE_CLIENT_ID is required in production")
	}
	return nil
}
