package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/natserract/sfmc-contentblock/pkg/session"
)

const (
	SfmcAccessTokenCookie   = "sfmc_access_token"
	SfmcRefreshTokenCookie  = "sfmc_refresh_token"
	SfmcTenantCookie        = "sfmc_tssd"
	LaasieAccessTokenCookie = "external_access_token"

	tenantCookieTTL       = 24 * time.Hour
	sfmcAccessCookieTTL   = 20 * time.Minute
	sfmcRefreshCookieTTL  = 14 * 24 * time.Hour
	laasieAccessCookieTTL = 60 * time.Minute
)

func (s *Server) cookie(name, value string, ttl time.Duration, httpOnly bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   !s.cfg.IsDev,
		SameSite: s.sameSite(),
	}
	if ttl > 0 {
		c.MaxAge = int(ttl.Seconds())
		c.Expires = time.Now().Add(ttl)
	}
	return c
}

// sameSite allows the cookies inside the SFMC iframe. Browsers reject
// SameSite=None without Secure, so development falls back to Lax.
func (s *Server) sameSite() http.SameSite {
	if s.cfg.IsDev {
		return http.SameSiteLaxMode
	}
	return http.SameSiteNoneMode
}

func (s *Server) setSignedCookie(w http.ResponseWriter, name, value string, ttl time.Duration) error {
	signed, err := s.signer.Sign(value, ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, s.cookie(name, signed, ttl, true))
	return nil
}

// setSfmcCookies stores the tenant and both tokens. The tenant cookie is set
// again to extend it.
func (s *Server) setSfmcCookies(w http.ResponseWriter, token *sfmcTokenResponse, tssd string) error {
	http.SetCookie(w, s.cookie(SfmcTenantCookie, tssd, tenantCookieTTL, true))

	// Access tokens live 20 minutes upstream.
	if err := s.setSignedCookie(w, SfmcAccessTokenCookie, token.AccessToken, sfmcAccessCookieTTL); err != nil {
		return err
	}
	return s.setSignedCookie(w, SfmcRefreshTokenCookie, token.RefreshToken, sfmcRefreshCookieTTL)
}

func (s *Server) deleteCookies(w http.ResponseWriter) {
	for _, name := range []string{SfmcAccessTokenCookie, SfmcRefreshTokenCookie, SfmcTenantCookie, LaasieAccessTokenCookie} {
		c := s.cookie(name, "", 0, true)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

// setCSRFCookie exposes the masked CSRF token to the client, which echoes it
// back in the CSRF header.
func (s *Server) setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, s.cookie(session.CSRFCookieName, token, 0, false))
}

// signedCookie returns the verified value of a signed cookie.
func (s *Server) signedCookie(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	value, err := s.signer.Verify(c.Value)
	if err != nil {
		s.logger.Error("Invalid cookie signature", zap.String("cookie", name), zap.Error(err))
		return "", false
	}
	return value, true
}
