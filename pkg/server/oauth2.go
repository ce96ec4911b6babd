package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	httpclient "github.com/natserract/sfmc-contentblock/pkg/http"
)

// sfmcTokenResponse is the token endpoint response of both grants.
// https://developer.salesforce.com/docs/marketing/marketing-cloud/guide/access-token-app.html
type sfmcTokenResponse struct {
	AccessToken     string `json:"access_token"`
	ExpiresIn       int    `json:"expires_in"`
	RefreshToken    string `json:"refresh_token"`
	RestInstanceURL string `json:"rest_instance_url"`
	Scope           string `json:"scope"`
	SoapInstanceURL string `json:"soap_instance_url"`
}

// oauth2Error is a rejection from the token endpoint.
type oauth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
	StatusCode  int    `json:"-"`
}

func (e *oauth2Error) Error() string {
	return fmt.Sprintf("oauth2 error %s (status %d): %s", e.Code, e.StatusCode, e.Description)
}

var errNotATokenResponse = errors.New("response is not an access token response")

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	state, err := NewState(s.cfg.JWTSecret, s.now())
	if err != nil {
		s.logger.Error("Cannot build authorization URL", zap.Error(err))
		http.Error(w, "Internal server error. Please contact the system administrator.", http.StatusInternalServerError)
		return
	}

	query := url.Values{}
	query.Set("client_id", s.cfg.SfmcClientID)
	query.Set("response_type", "code")
	query.Set("redirect_uri", s.cfg.redirectURI())
	query.Set("state", state)

	target := s.cfg.sfmcAuthURL(s.cfg.SfmcDefaultTenantSubdomain) + "/v2/authorize?" + query.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

// callback completes the authorization code grant. SFMC redirects the user's
// browser here after a successful login.
func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Has("error") {
		s.logger.Error("Authorization server returned an error", zap.String("query", r.URL.RawQuery))
		http.Error(w, r.URL.RawQuery, http.StatusBadRequest)
		return
	}

	if err := VerifyState(query.Get("state"), s.cfg.JWTSecret, s.now()); err != nil {
		s.logger.Error("State verification failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}

	// tssd is the user's tenant subdomain; it takes precedence over the default.
	tenant := s.cfg.SfmcDefaultTenantSubdomain
	if query.Has("tssd") {
		tssd := query.Get("tssd")
		if !tssdPattern.MatchString(tssd) {
			http.Error(w, "Invalid value provided in the tssd param.", http.StatusBadRequest)
			return
		}
		tenant = tssd
	}

	token, err := s.requestSfmcToken(r, tenant, map[string]string{
		"client_id":     s.cfg.SfmcClientID,
		"client_secret": s.cfg.SfmcClientSecret,
		"code":          code,
		"grant_type":    "authorization_code",
		"redirect_uri":  s.cfg.redirectURI(),
	})
	if err != nil {
		s.logger.Error("Failed to fetch access token from SFMC", zap.Error(err))
		var upstream *oauth2Error
		if errors.As(err, &upstream) {
			http.Error(w, upstream.Description, http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to fetch access token from SFMC", http.StatusBadGateway)
		return
	}

	if err := s.setSfmcCookies(w, token, tenant); err != nil {
		s.logger.Error("Failed to set SFMC cookies", zap.Error(err))
		http.Error(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// refreshToken is called by the client periodically to refresh both tokens.
func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	tssdCookie, err := r.Cookie(SfmcTenantCookie)
	if err != nil || tssdCookie.Value == "" {
		s.logger.Error("SFMC tenant sub-domain cookie was not found")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if _, err := r.Cookie(SfmcRefreshTokenCookie); err != nil {
		s.logger.Error("Refresh token cookie was not found", zap.String("cookie", SfmcRefreshTokenCookie))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	tssd := tssdCookie.Value
	if !tssdPattern.MatchString(tssd) {
		s.logger.Error("Invalid value provided in the tssd cookie")
		writeInvalidTenant(w)
		return
	}

	refreshToken, ok := s.signedCookie(r, SfmcRefreshTokenCookie)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	token, err := s.requestSfmcToken(r, tssd, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     s.cfg.SfmcClientID,
		"client_secret": s.cfg.SfmcClientSecret,
		"refresh_token": refreshToken,
	})
	if err != nil {
		s.logger.Error("Failed to fetch refresh token from SFMC", zap.Error(err))
		w.WriteHeader(refreshFailureStatus(err))
		return
	}

	if err := s.setSfmcCookies(w, token, tssd); err != nil {
		s.logger.Error("Failed to set SFMC cookies", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// refreshFailureStatus maps a failed refresh grant to the status returned to
// the client. A 401 sends the user back through the login.
func refreshFailureStatus(err error) int {
	var upstream *oauth2Error
	if !errors.As(err, &upstream) {
		return http.StatusInternalServerError
	}
	switch upstream.Code {
	case "invalid_request":
		return http.StatusUnauthorized
	case "invalid_token":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// requestSfmcToken posts a grant to the tenant's token endpoint. Rejections
// are returned as *oauth2Error.
func (s *Server) requestSfmcToken(r *http.Request, tenant string, grant map[string]string) (*sfmcTokenResponse, error) {
	endpoint := s.cfg.sfmcAuthURL(tenant) + "/v2/token"
	headers := map[string]string{"Content-Type": "application/json"}

	resp, err := s.upstream.Post(r.Context(), endpoint, headers, grant)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			upstream := &oauth2Error{StatusCode: statusErr.StatusCode}
			if jsonErr := json.Unmarshal(statusErr.Body, upstream); jsonErr == nil && upstream.Code != "" {
				return nil, upstream
			}
		}
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	var token sfmcTokenResponse
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errNotATokenResponse
	}
	return &token, nil
}
