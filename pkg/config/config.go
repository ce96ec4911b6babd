package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"
)

// Config configures the content block client.
type Config struct {
	// AppBaseURL is the origin of the application backend; every API path is
	// relative to it.
	AppBaseURL string
	// SessionStore selects where the session clock lives.
	SessionStore string
	// SessionID scopes a postgres session store. Empty means a new session.
	SessionID string
	// SessionCookies is a Cookie header copied from a logged-in browser. It
	// seeds the client's cookie jar.
	SessionCookies string
}

func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		AppBaseURL:     os.Getenv("APP_BASE_URL"),
		SessionStore:   os.Getenv("SESSION_STORE"),
		SessionID:      os.Getenv("SESSION_ID"),
		SessionCookies: os.Getenv("SESSION_COOKIES"),
	}
	if cfg.SessionStore == "" {
		cfg.SessionStore = SessionStoreMemory
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.AppBaseURL == "" {
		return fmt.Errorf("APP_BASE_URL is required")
	}
	if c.SessionStore != SessionStoreMemory && c.SessionStore != SessionStorePostgres {
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreMemory, SessionStorePostgres, c.SessionStore)
	}
	return nil
}
