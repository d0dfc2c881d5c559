package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" default:"development"`
	Port     string `env:"PORT" default:"8080"`
	RedisURL string `env:"REDIS_URL"`

	// ProcessID attributes presence records to this process for diagnostics.
	// It is never used for routing decisions. Defaults to the hostname.
	ProcessID string `env:"PROCESS_ID"`

	PresenceTTL       time.Duration `env:"PRESENCE_TTL" default:"3600s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"25s"`
	// HeartbeatTimeout bounds how long a client may stay silent before the
	// transport read deadline tears the connection down.
	HeartbeatTimeout time.Duration `env:"HEARTBEAT_TIMEOUT" default:"30s"`
	// StoreTimeout bounds every presence-store round trip so reads degrade
	// to "offline" instead of hanging.
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" default:"2s"`

	MaxConnections      int64         `env:"MAX_CONNECTIONS" default:"10000"`
	ConnectRatePerSec   float64       `env:"CONNECT_RATE_PER_SEC" default:"5"`
	ConnectBurst        int           `env:"CONNECT_BURST" default:"10"`
	PresenceCacheExpiry time.Duration `env:"PRESENCE_CACHE_EXPIRY" default:"2s"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if cfg.ProcessID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("PROCESS_ID not set and hostname unavailable: %w", err)
		}
		cfg.ProcessID = hostname
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if cfg.PresenceTTL <= 0 {
		return fmt.Errorf("PRESENCE_TTL must be positive")
	}
	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if cfg.HeartbeatTimeout < cfg.HeartbeatInterval {
		return fmt.Errorf("HEARTBEAT_TIMEOUT must not be shorter than HEARTBEAT_INTERVAL")
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS must be positive")
	}
	return nil
}
