package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	httpclient "github.com/natserract/sfmc-contentblock/pkg/http"
)

type contextKey string

const (
	tenantKey      contextKey = "tenant"
	accessTokenKey contextKey = "access_token"
)

func writeInvalidTenant(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             "invalid_request",
		"error_description": "Invalid value provided for the tssd param.",
	})
}

// requireSfmcSession rejects requests without a valid tenant cookie and a
// signed SFMC access token.
func (s *Server) requireSfmcSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tssdCookie, err := r.Cookie(SfmcTenantCookie)
		if err != nil || tssdCookie.Value == "" {
			s.logger.Error("tssd cookie was empty")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !tssdPattern.MatchString(tssdCookie.Value) {
			s.logger.Error("Invalid value provided in the tssd cookie")
			writeInvalidTenant(w)
			return
		}

		token, ok := s.signedCookie(r, SfmcAccessTokenCookie)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), tenantKey, tssdCookie.Value)
		ctx = context.WithValue(ctx, accessTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireLaasieSession rejects requests without a signed partner token.
func (s *Server) requireLaasieSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := s.signedCookie(r, LaasieAccessTokenCookie)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accessTokenKey, token)))
	})
}

// proxySfmcRest forwards a Content Builder request to the tenant's REST endpoint.
func (s *Server) proxySfmcRest(w http.ResponseWriter, r *http.Request) {
	tenant, _ := r.Context().Value(tenantKey).(string)
	path := strings.TrimPrefix(r.URL.Path, "/api/sfmc")
	s.forward(w, r, s.cfg.sfmcRestURL(tenant)+path)
}

// proxySfmcUserInfo forwards to the tenant's auth endpoint.
// https://developer.salesforce.com/docs/marketing/marketing-cloud/guide/getUserInfo.html
func (s *Server) proxySfmcUserInfo(w http.ResponseWriter, r *http.Request) {
	tenant, _ := r.Context().Value(tenantKey).(string)
	s.forward(w, r, s.cfg.sfmcAuthURL(tenant)+"/v2/userinfo")
}

func (s *Server) proxyLaasie(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/laasie")
	s.forward(w, r, s.cfg.LaasieAPIBaseURL+path)
}

// forward replays r against target with the session's bearer token and
// copies the upstream status and body back.
func (s *Server) forward(w http.ResponseWriter, r *http.Request, target string) {
	token, _ := r.Context().Value(accessTokenKey).(string)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("Failed to read request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	headers := map[string]string{"Authorization": "Bearer " + token}
	opts := httpclient.RequestOptions{
		Method:  r.Method,
		URL:     target,
		Headers: headers,
		Context: r.Context(),
	}
	if len(body) > 0 {
		headers["Content-Type"] = contentType(r.Header)
		opts.Body = body
	}

	s.logger.Info("Proxying request", zap.String("method", r.Method), zap.String("url", target))
	resp, err := s.upstream.Do(opts)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			writeUpstream(w, statusErr.StatusCode, nil, statusErr.Body)
			return
		}
		s.logger.Error("Upstream request failed", zap.Error(err), zap.String("url", target))
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	writeUpstream(w, resp.StatusCode, resp.Headers, resp.Body)
}

func writeUpstream(w http.ResponseWriter, status int, headers http.Header, body []byte) {
	w.Header().Set("Content-Type", contentType(headers))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// contentType defaults to JSON, the content type of every SFMC endpoint.
func contentType(headers http.Header) string {
	if ct := headers.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/json"
}

// laasieToken exchanges the backend's partner API key for a token and keeps
// it in a cookie only the backend reads.
func (s *Server) laasieToken(w http.ResponseWriter, r *http.Request) {
	headers := map[string]string{"Content-Type": "application/json"}
	resp, err := s.upstream.Post(r.Context(), s.cfg.LaasieAPIBaseURL+"/auth", headers, map[string]string{
		"api_id":  s.cfg.LaasieAPIUsername,
		"api_key": s.cfg.LaasieAPIPassword,
	})
	if err != nil {
		s.logger.Error("Failed to fetch access token from Laasie", zap.Error(err))
		http.Error(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}

	var token struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body, &token); err != nil || token.Token == "" {
		s.logger.Error("Error parsing JSON response from token endpoint",
			zap.Error(err),
			zap.String("response", string(resp.Body)))
		http.Error(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}

	if err := s.setSignedCookie(w, LaasieAccessTokenCookie, token.Token, laasieAccessCookieTTL); err != nil {
		s.logger.Error("Failed to set Laasie cookie", zap.Error(err))
		http.Error(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
