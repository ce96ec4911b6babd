package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/justinas/nosurf"
	"go.uber.org/zap"

	"github.com/natserract/sfmc-contentblock/pkg/session"
)

const contentSecurityPolicy = "frame-ancestors https://*.exacttarget.com https://*.marketingcloudapps.com; " +
	"default-src 'self'; img-src 'self' data:; script-src 'self'; " +
	"connect-src 'self' https://*.marketingcloudapis.com/; object-src 'none'"

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("Handled request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status_code", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr))
		}()
		next.ServeHTTP(ww, r)
	})
}

// securityHeaders only lets SFMC embed the application.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// csrf rejects unsafe requests without a valid CSRF header and hands every
// client the token in a readable cookie.
func (s *Server) csrf(next http.Handler) http.Handler {
	expose := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCSRFCookie(w, nosurf.Token(r))
		next.ServeHTTP(w, r)
	})

	handler := nosurf.New(expose)
	handler.SetBaseCookie(http.Cookie{
		Name:     nosurf.CookieName,
		HttpOnly: true,
		Path:     "/",
		Secure:   !s.cfg.IsDev,
		SameSite: s.sameSite(),
	})
	handler.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warn("CSRF verification failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Bool("has_header", r.Header.Get(session.CSRFHeaderName) != ""),
			zap.Error(nosurf.Reason(r)))
		http.Error(w, "The CSRF token is missing or invalid.", http.StatusBadRequest)
	}))
	return handler
}
