// Package session keeps the client's access tokens usable.
//
// A request interceptor decides, before each request, whether the access
// token cookie should be refreshed. The decision is a client-side heuristic:
// the token is considered stale when the cookie is missing or when more than
// the maximum token lifetime has passed since the session clock was last
// reset. The clock is reset after every refresh attempt, successful or not;
// a failed refresh surfaces later as a 401, which LoginRedirect turns into a
// re-authentication error.
package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// CSRFCookieName is both the cookie the backend sets and the header echoed back.
	CSRFCookieName = "X-CSRF-Token"
	CSRFHeaderName = "X-CSRF-Token"
	// TenantHeaderName carries the tenant marker alongside the bearer token.
	TenantHeaderName = "sfmc_tssd"
)

// DefaultAuthPathMarkers identify refresh and login endpoints.
var DefaultAuthPathMarkers = []string{"oauth2", "auth"}

// RefreshFunc asks the backend to refresh an access token cookie.
type RefreshFunc func(ctx context.Context) error

type InterceptorConfig struct {
	MaxTokenLifetime      time.Duration
	AccessTokenCookieName string
	TenantMarker          string
	Refresh               RefreshFunc
	AddAuthHeader         bool

	Cookies CookieSource
	Clock   ClockStore
	// Now defaults to time.Now.
	Now func() time.Time
	// AuthPathMarkers defaults to DefaultAuthPathMarkers.
	AuthPathMarkers []string
	Logger          *zap.Logger
}

// NewRequestInterceptor returns a function that decorates outgoing requests
// with the CSRF header and, when configured, a bearer token, refreshing the
// token first when it looks stale. The request is modified in place and
// returned; it is never rejected.
func NewRequestInterceptor(cfg InterceptorConfig) func(*http.Request) *http.Request {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	markers := cfg.AuthPathMarkers
	if markers == nil {
		markers = DefaultAuthPathMarkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(req *http.Request) *http.Request {
		if req.URL == nil || req.URL.String() == "" {
			logger.Error("Making a request without a URL")
			return req
		}
		if req.Header == nil {
			req.Header = make(http.Header)
		}

		if isSameOrigin(req) {
			csrf, _ := cfg.Cookies.Cookie(CSRFCookieName)
			req.Header.Set(CSRFHeaderName, csrf)
		}

		// Refresh and login endpoints authenticate with server-only cookies.
		for _, marker := range markers {
			if strings.Contains(req.URL.Path, marker) {
				return req
			}
		}

		ctx := req.Context()
		accessToken, ok := cfg.Cookies.Cookie(cfg.AccessTokenCookieName)
		if !ok || accessToken == "" || isStale(ctx, cfg.Clock, now(), cfg.MaxTokenLifetime, logger) {
			logger.Debug("Access token missing or stale, refreshing",
				zap.String("cookie", cfg.AccessTokenCookieName),
				zap.String("url", req.URL.String()))

			if cfg.Refresh != nil {
				if err := cfg.Refresh(ctx); err != nil {
					logger.Warn("Token refresh failed, continuing with the request",
						zap.String("cookie", cfg.AccessTokenCookieName),
						zap.Error(err))
				}
			}

			if err := SetSessionStart(ctx, cfg.Clock, now()); err != nil {
				logger.Error("Failed to reset session clock", zap.Error(err))
			}

			accessToken, ok = cfg.Cookies.Cookie(cfg.AccessTokenCookieName)
			if !ok || accessToken == "" {
				return req
			}
		}

		if !cfg.AddAuthHeader {
			return req
		}

		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set(TenantHeaderName, cfg.TenantMarker)

		return req
	}
}

func isSameOrigin(req *http.Request) bool {
	return !req.URL.IsAbs() && req.URL.Host == "" && strings.HasPrefix(req.URL.Path, "/")
}

func isStale(ctx context.Context, clock ClockStore, now time.Time, maxLifetime time.Duration, logger *zap.Logger) bool {
	start, err := SessionStart(ctx, clock)
	if err != nil {
		logger.Debug("Session clock unavailable", zap.Error(err))
		return true
	}
	return now.Sub(start) > maxLifetime
}
