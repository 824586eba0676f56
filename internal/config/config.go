// Package config loads client configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds client configuration.
type Config struct {
	// Backend service
	APIBaseURL     string        `env:"KRIYA_API_URL" envDefault:"http://localhost:3000"`
	RequestTimeout time.Duration `env:"KRIYA_REQUEST_TIMEOUT" envDefault:"10s"`

	// Google federated sign-in
	GoogleClientID string `env:"KRIYA_GOOGLE_CLIENT_ID"`
	// Port for the one-shot OAuth callback listener. 0 picks a free port.
	CallbackPort int `env:"KRIYA_CALLBACK_PORT" envDefault:"0"`

	// Local state
	StateDir string `env:"KRIYA_STATE_DIR"`

	// Dev stub server
	DevServerAddr string `env:"KRIYA_DEVSERVER_ADDR" envDefault:"127.0.0.1:3000"`
	DevJWTSecret  string `env:"KRIYA_DEV_JWT_SECRET" envDefault:"kriya-dev-secret-do-not-use-in-prod"`
}

// Load reads .env if present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("KRIYA_API_URL is required")
	}

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, err
		}
		cfg.StateDir = dir
	}

	return cfg, nil
}

// SessionPath returns the path of the session database.
func (c *Config) SessionPath() string {
	return filepath.Join(c.StateDir, "session.db")
}

// HasGoogle reports whether federated sign-in is configured.
func (c *Config) HasGoogle() bool {
	return c.GoogleClientID != ""
}

func defaultStateDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve state dir: %w", err)
	}
	return filepath.Join(base, "kriya"), nil
}
