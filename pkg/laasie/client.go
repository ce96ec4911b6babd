// Package laasie is the client of the partner API behind the application
// backend. The backend exchanges its API key for a partner token, keeps it in
// a cookie and forwards /api/laasie requests; this client sends the token as a
// bearer header and refreshes it ahead of expiry.
package laasie

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	httpclient "github.com/natserract/sfmc-contentblock/pkg/http"
	"github.com/natserract/sfmc-contentblock/pkg/session"
)

// LaasieClient defines the interface for partner API operations
type LaasieClient interface {
	// RefreshToken refreshes the partner token cookie and schedules the next refresh
	RefreshToken(ctx context.Context) error

	// InitAccessToken initializes the partner token cookie once
	InitAccessToken(ctx context.Context) error

	// SaveSfmcS2SCredentials stores the SFMC server-to-server credentials
	SaveSfmcS2SCredentials(ctx context.Context, payload SfmcS2SPayload) error
}

// Client is the main client for the partner API
type Client struct {
	settings   Settings
	httpClient *httpclient.Client
	scheduler  *session.RefreshScheduler
	logger     *zap.Logger
}

var _ LaasieClient = (*Client)(nil)

// Options wire a Client into a browser-like session.
type Options struct {
	AppBaseURL string
	Jar        http.CookieJar
	Clock      session.ClockStore
	// Settings default to DefaultSettings().
	Settings *Settings
}

// NewClient creates a new partner API client with default production logger
func NewClient(opts Options) (*Client, error) {
	logger, _ := zap.NewProduction()
	return NewClientWithLogger(opts, logger)
}

// NewClientWithLogger creates a new partner API client with a custom logger
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
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}

	c := &Client{
		settings:   settings,
		httpClient: httpClient,
		logger:     logger,
	}
	c.scheduler = session.NewRefreshScheduler("laasie", settings.TokenRefreshInterval, c.refreshToken, logger)

	httpClient.Use(session.NewRequestInterceptor(session.InterceptorConfig{
		MaxTokenLifetime:      settings.MaxTokenLifetime,
		AccessTokenCookieName: settings.AccessTokenCookieName,
		TenantMarker:          "",
		Refresh:               c.scheduler.Refresh,
		AddAuthHeader:         true,
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

// RefreshToken asks the backend for a new partner token. On success another
// refresh is scheduled after TokenRefreshInterval.
func (c *Client) RefreshToken(ctx context.Context) error {
	return c.scheduler.Refresh(ctx)
}

func (c *Client) refreshToken(ctx context.Context) error {
	c.logger.Info("Refreshing partner access token")

	if _, err := c.httpClient.Post(ctx, c.settings.TokenPath, nil, nil); err != nil {
		c.logger.Error("Partner token refresh failed", zap.Error(err))
		return fmt.Errorf("partner token refresh failed: %w", err)
	}

	c.logger.Info("Successfully refreshed partner access token")
	return nil
}

// InitAccessToken sets the partner token cookie, which only the backend reads
// when forwarding requests. It does not schedule refreshes.
func (c *Client) InitAccessToken(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.settings.InitTimeout)
	defer cancel()

	if _, err := c.httpClient.Post(ctx, c.settings.TokenPath, nil, nil); err != nil {
		c.logger.Error("Failed to initialize partner access token", zap.Error(err))
		return fmt.Errorf("failed to initialize partner access token: %w", err)
	}
	return nil
}

// SaveSfmcS2SCredentials stores the installed package credentials with the
// partner so that it can call SFMC on the tenant's behalf.
func (c *Client) SaveSfmcS2SCredentials(ctx context.Context, payload SfmcS2SPayload) error {
	c.logger.Info("Saving SFMC server-to-server credentials",
		zap.Int("mid", payload.MID),
		zap.String("subdomain", payload.SubDomain))

	if _, err := c.httpClient.Post(ctx, c.settings.APIBaseURL+"/sfmc", nil, payload); err != nil {
		c.logger.Error("Failed to save SFMC credentials", zap.Error(err))
		return fmt.Errorf("failed to save SFMC credentials: %w", err)
	}

	c.logger.Info("Successfully saved SFMC server-to-server credentials")
	return nil
}
