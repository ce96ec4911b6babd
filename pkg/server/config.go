package server

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultSfmcAuthURL = "https://{tssd}.auth.marketingcloudapis.com"
	defaultSfmcRestURL = "https://{tssd}.rest.marketingcloudapis.com"
)

// Config configures the application backend.
type Config struct {
	ListenAddr string
	// IsDev drops the Secure attribute from cookies so that they work over
	// plain HTTP.
	IsDev bool

	// SecretKey signs the token cookies.
	SecretKey string
	// JWTSecret signs the OAuth2 state parameter.
	JWTSecret string
	// SelfDomain is the public origin of the backend, used in redirect URIs.
	SelfDomain string

	SfmcClientID               string
	SfmcClientSecret           string
	SfmcDefaultTenantSubdomain string
	SfmcOAuth2CallbackPath     string
	// SfmcAuthURL and SfmcRestURL are the tenant endpoints; {tssd} is
	// replaced with the tenant subdomain.
	SfmcAuthURL string
	SfmcRestURL string

	LaasieAPIBaseURL  string
	LaasieAPIUsername string
	LaasieAPIPassword string
}

func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:                 getEnv("LISTEN_ADDR", ":8080"),
		IsDev:                      os.Getenv("IS_DEV") == "true",
		SecretKey:                  os.Getenv("SECRET_KEY"),
		JWTSecret:                  os.Getenv("JWT_SECRET"),
		SelfDomain:                 getEnv("SELF_DOMAIN", "localhost"),
		SfmcClientID:               os.Getenv("SFMC_CLIENT_ID"),
		SfmcClientSecret:           os.Getenv("SFMC_CLIENT_SECRET"),
		SfmcDefaultTenantSubdomain: os.Getenv("SFMC_DEFAULT_TENANT_SUBDOMAIN"),
		SfmcOAuth2CallbackPath:     getEnv("SFMC_OAUTH2_CALLBACK_PATH", "/callback"),
		SfmcAuthURL:                defaultSfmcAuthURL,
		SfmcRestURL:                defaultSfmcRestURL,
		LaasieAPIBaseURL:           os.Getenv("LAASIE_API_BASE_URL"),
		LaasieAPIUsername:          os.Getenv("LAASIE_API_USERNAME"),
		LaasieAPIPassword:          os.Getenv("LAASIE_API_PASSWORD"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if strings.TrimSpace(c.SfmcClientID) == "" {
		return fmt.Errorf("SFMC_CLIENT_ID is required")
	}
	if strings.TrimSpace(c.SfmcClientSecret) == "" {
		return fmt.Errorf("SFMC_CLIENT_SECRET is required")
	}
	if !strings.HasPrefix(c.SfmcOAuth2CallbackPath, "/") {
		return fmt.Errorf("SFMC_OAUTH2_CALLBACK_PATH must start with /")
	}
	return nil
}

// sfmcAuthURL returns the auth endpoint of tenant tssd.
func (c *Config) sfmcAuthURL(tssd string) string {
	return strings.ReplaceAll(c.SfmcAuthURL, "{tssd}", tssd)
}

// sfmcRestURL returns the REST endpoint of tenant tssd.
func (c *Config) sfmcRestURL(tssd string) string {
	return strings.ReplaceAll(c.SfmcRestURL, "{tssd}", tssd)
}

func (c *Config) redirectURI() string {
	return c.SelfDomain + "/oauth2/sfmc" + c.SfmcOAuth2CallbackPath
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
