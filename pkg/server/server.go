// Package server is the application backend of the content block. It runs the
// SFMC OAuth2 authorization code flow, keeps the resulting tokens in signed
// cookies, and forwards the client's /api/sfmc and /api/laasie requests to the
// tenant's SFMC endpoints and to the partner API with the bearer token
// attached.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	httpclient "github.com/natserract/sfmc-contentblock/pkg/http"
)

const shutdownTimeout = 10 * time.Second

// tssdPattern validates tenant subdomains.
// https://developer.salesforce.com/docs/marketing/marketing-cloud/guide/authorization-code.html
var tssdPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

type Server struct {
	cfg      *Config
	signer   *Signer
	upstream *httpclient.Client
	router   chi.Router
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a new backend with default production logger
func New(cfg *Config) *Server {
	logger, _ := zap.NewProduction()
	return NewWithLogger(cfg, logger)
}

// NewWithLogger creates a new backend with a custom logger
func NewWithLogger(cfg *Config, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		signer:   NewSigner(cfg.SecretKey),
		upstream: httpclient.NewClientWithLogger(logger),
		router:   chi.NewRouter(),
		logger:   logger,
		now:      time.Now,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.logRequest)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
	s.router.Use(s.csrf)

	s.router.Get("/", s.index)
	s.router.Get("/healthcheck", s.healthcheck)
	s.router.Post("/logout", s.logout)

	s.router.Route("/oauth2/sfmc", func(r chi.Router) {
		r.Get("/authorize", s.authorize)
		r.Get(s.cfg.SfmcOAuth2CallbackPath, s.callback)
		r.Post("/refresh_token", s.refreshToken)
	})

	s.router.Post("/auth/laasie/token", s.laasieToken)

	s.router.Route("/api/sfmc", func(r chi.Router) {
		r.Use(s.requireSfmcSession)
		r.Get("/asset/v1/content/assets", s.proxySfmcRest)
		r.Post("/asset/v1/content/assets", s.proxySfmcRest)
		r.Post("/asset/v1/content/assets/query", s.proxySfmcRest)
		r.Patch("/asset/v1/content/assets/{assetID}", s.proxySfmcRest)
		r.Get("/asset/v1/assets/{assetID}/thumbnail", s.proxySfmcRest)
		r.Get("/asset/v1/content/categories", s.proxySfmcRest)
		r.Post("/asset/v1/content/categories", s.proxySfmcRest)
		r.Get("/userinfo", s.proxySfmcUserInfo)
	})

	s.router.Route("/api/laasie", func(r chi.Router) {
		r.Use(s.requireLaasieSession)
		r.Post("/sfmc", s.proxyLaasie)
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.String("addr", s.cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("SFMC content block"))
}

func (s *Server) healthcheck(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("Healthy!"))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.deleteCookies(w)
	w.WriteHeader(http.StatusNoContent)
}
