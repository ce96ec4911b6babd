package laasie

import "time"

// Settings are the fixed parameters of the partner API client.
type Settings struct {
	APIBaseURL            string
	AccessTokenCookieName string
	TokenRefreshInterval  time.Duration
	MaxTokenLifetime      time.Duration
	Timeout               time.Duration
	TokenPath             string
	// InitTimeout bounds InitAccessToken.
	InitTimeout time.Duration
}

// DefaultSettings refresh every 50 minutes a token assumed to live 60.
func DefaultSettings() Settings {
	return Settings{
		APIBaseURL:            "/api/laasie",
		AccessTokenCookieName: "external_access_token",
		TokenRefreshInterval:  50 * time.Minute,
		MaxTokenLifetime:      60 * time.Minute,
		Timeout:               30 * time.Second,
		TokenPath:             "/auth/laasie/token",
		InitTimeout:           10 * time.Second,
	}
}
