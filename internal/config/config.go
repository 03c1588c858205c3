package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the proxy runtime configuration loaded from environment variables.
type Config struct {
	AppName          string        `env:"APP_NAME" envDefault:"EASProxy"`
	AppEnv           string        `env:"APP_ENV" envDefault:"development"`
	Port             string        `env:"PORT" envDefault:"8080"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	DatabaseMaxConns int32         `env:"DATABASE_MAX_CONNS" envDefault:"0"`
	RedisURL         string        `env:"REDIS_URL"`
	ShutdownPeriod   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL   time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	UpstreamURL     string        `env:"GRID_API_URL"`
	UpstreamAPIKey  string        `env:"GRID_API_KEY"`
	UpstreamTimeout time.Duration `env:"GRID_API_TIMEOUT" envDefault:"30s"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"15m"`

	OTPMaxPerWindow int           `env:"OTP_MAX_PER_WINDOW" envDefault:"3"`
	OTPWindow       time.Duration `env:"OTP_WINDOW" envDefault:"1m"`

	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse proxy config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if cfg.UpstreamURL == "" {
		return Config{}, fmt.Errorf("GRID_API_URL must be set")
	}

	if !cfg.IsDev() {
		if cfg.SessionSecret == "" {
			return Config{}, fmt.Errorf("SESSION_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "dev-session-secret"
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the proxy runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Store backends supported by the wallet CLI.
const (
	StoreFile   = "file"
	StoreBadger = "badger"
	StoreMemory = "memory"
)

// Client captures the wallet CLI configuration.
type Client struct {
	BackendURL      string        `env:"EAS_BACKEND_URL" envDefault:"http://localhost:8080"`
	LogLevel        string        `env:"EAS_LOG_LEVEL" envDefault:"warn"`
	RequestTimeout  time.Duration `env:"EAS_REQUEST_TIMEOUT" envDefault:"30s"`
	GetAttempts     uint          `env:"EAS_GET_ATTEMPTS" envDefault:"1"`
	RetryDelay      time.Duration `env:"EAS_RETRY_DELAY" envDefault:"500ms"`
	StoreBackend    string        `env:"EAS_STORE_BACKEND" envDefault:"file"`
	StorePath       string        `env:"EAS_STORE_PATH"`
	StorePassphrase string        `env:"EAS_STORE_PASSPHRASE"`
	ResendSeconds   int           `env:"EAS_RESEND_SECONDS" envDefault:"30"`
}

// LoadClient reads the wallet CLI configuration from the environment.
func LoadClient() (Client, error) {
	return loadClient(env.Options{})
}

func loadClient(opts env.Options) (Client, error) {
	var cfg Client
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Client{}, fmt.Errorf("parse wallet config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)

	switch cfg.StoreBackend {
	case StoreFile, StoreBadger:
		if cfg.StorePassphrase == "" {
			return Client{}, fmt.Errorf("EAS_STORE_PASSPHRASE must be set for the %s store", cfg.StoreBackend)
		}
	case StoreMemory:
	default:
		return Client{}, fmt.Errorf("invalid EAS_STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.StorePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Client{}, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.StorePath = filepath.Join(home, ".eas_wallet")
	}
	if cfg.GetAttempts == 0 {
		cfg.GetAttempts = 1
	}
	if cfg.ResendSeconds <= 0 {
		return Client{}, fmt.Errorf("invalid EAS_RESEND_SECONDS: %d", cfg.ResendSeconds)
	}

	return cfg, nil
}
