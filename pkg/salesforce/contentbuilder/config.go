package contentbuilder

import "time"

// Settings are the fixed parameters of the SFMC side of the application.
type Settings struct {
	SfmcBaseAPIURLSuffix      string
	AccessTokenCookieName     string
	TenantSubDomainCookieName string
	TokenRefreshInterval      time.Duration
	MaxTokenLifetime          time.Duration
	Timeout                   time.Duration
	// LoginPath is where a 401 sends the user.
	LoginPath        string
	RefreshTokenPath string
	APIPrefix        string
}

// DefaultSettings refresh every 15 minutes a token assumed to live 20.
func DefaultSettings() Settings {
	return Settings{
		SfmcBaseAPIURLSuffix:      "rest.marketingcloudapis.com",
		AccessTokenCookieName:     "sfmc_access_token",
		TenantSubDomainCookieName: "sfmc_tssd",
		TokenRefreshInterval:      15 * time.Minute,
		MaxTokenLifetime:          20 * time.Minute,
		Timeout:                   20 * time.Second,
		LoginPath:                 "/oauth2/sfmc/authorize",
		RefreshTokenPath:          "/oauth2/sfmc/refresh_token",
		APIPrefix:                 "/api/sfmc",
	}
}

// DefaultCategoryName is the Content Builder category holding the HTML block
// templates. Renaming it orphans the blocks existing users keep there.
const DefaultCategoryName = "Laasie Collection Templates"
