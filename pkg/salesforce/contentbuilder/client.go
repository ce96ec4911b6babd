// Package contentbuilder provides a client for the Salesforce Marketing Cloud
// Content Builder (Asset) REST API as exposed by the application backend.
//
// Content Builder stores the emails, templates and content blocks of an SFMC
// business unit as typed assets organized in categories. The application keeps
// its HTML block templates in one shared category and upserts generated HTML
// blocks by customer key.
//
// All requests go to the backend under /api/sfmc, which forwards them to the
// tenant's REST endpoint using the access token held in a server-signed
// cookie. This client therefore never adds an Authorization header itself; it
// only keeps that cookie fresh and turns a 401 into a re-authentication error
// pointing at /oauth2/sfmc/authorize.
package contentbuilder

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	httpclient "github.com/natserract/sfmc-contentblock/pkg/http"
	"github.com/natserract/sfmc-contentblock/pkg/session"
)

// Client is the main client for the Content Builder API
type Client struct {
	settings   Settings
	httpClient *httpclient.Client
	scheduler  *session.RefreshScheduler
	logger     *zap.Logger
}

// Options wire a Client into a browser-like session.
type Options struct {
	// AppBaseURL is the backend origin.
	AppBaseURL string
	Jar        http.CookieJar
	Clock      session.ClockStore
	// Navigate is called with the login URL on a 401. Optional.
	Navigate func(loginURL string)
	// Settings default to DefaultSettings().
	Settings *Settings
}

// NewClient creates a new Content Builder client with default production logger
func NewClient(opts Options) (*Client, error) {
	logger, _ := zap.NewProduction()
	return NewClientWithLogger(opts, logger)
}

// NewClientWithLogger creates a new Content Builder client with a custom logger
func NewClientWithLogger(opts Options, logger *zap.Logger) (*Client, error) {
	settings := DefaultSettings()
	if opts.Settings != nil {
		settings = *opts.Settings
	}
	if opts.Clock == nil {
		opts.Clock = session.NewMemoryStore()
	}

	httpClient, err := httpclient.NewClientWithOptions(httpclient.Options{
		BaseURL: opts.AppBaseURL,
		Timeout: settings.Timeout,
		Jar:     opts.Jar,
		AuthFailureHandler: &session.LoginRedirect{
			LoginURL: settings.LoginPath,
			Navigate: opts.Navigate,
			Logger:   logger,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}

	c := &Client{
		settings:   settings,
		httpClient: httpClient,
		logger:     logger,
	}
	c.scheduler = session.NewRefreshScheduler("sfmc", settings.TokenRefreshInterval, c.refreshToken, logger)

	// The backend attaches the bearer token; the client only keeps the cookie fresh.
	httpClient.Use(session.NewRequestInterceptor(session.InterceptorConfig{
		MaxTokenLifetime:      settings.MaxTokenLifetime,
		AccessTokenCookieName: settings.AccessTokenCookieName,
		TenantMarker:          settings.TenantSubDomainCookieName,
		Refresh:               c.scheduler.Refresh,
		AddAuthHeader:         false,
		Cookies:               session.JarCookies{Jar: opts.Jar, Origin: httpClient.BaseURL()},
		Clock:                 opts.Clock,
		Logger:                logger,
	}))

	return c, nil
}

// Close stops the token refresh schedule.
func (c *Client) Close() {
	c.scheduler.Stop()
}

func (c *Client) apiPath(path string) string {
	return c.settings.APIPrefix + path
}
