// Package api exposes the HTTP interface for the scraping service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/auth"
	"github.com/crawlgate/crawlgate/internal/config"
	"github.com/crawlgate/crawlgate/internal/crawl"
	"github.com/crawlgate/crawlgate/internal/metrics"
	"github.com/crawlgate/crawlgate/internal/platform"
	"github.com/crawlgate/crawlgate/internal/profile"
	"github.com/crawlgate/crawlgate/internal/storage"
)

// SetupRunner runs a login setup flow. Satisfied by *auth.Orchestrator.
type SetupRunner interface {
	Setup(ctx context.Context, req auth.SetupRequest) (auth.SetupResult, error)
}

// AuthService performs authenticated crawls. Satisfied by *auth.Service.
type AuthService interface {
	CrawlWithAuth(ctx context.Context, req auth.CrawlRequest) (crawl.CrawlData, error)
	MarkdownWithAuth(ctx context.Context, req auth.CrawlRequest) (crawl.MarkdownData, error)
	VerifyLogin(ctx context.Context, siteName, testURL string) (auth.LoginStatus, error)
}

// Server wires HTTP handlers to the auth and platform subsystems.
type Server struct {
	router    chi.Router
	cfg       config.Config
	logger    *zap.Logger
	setup     SetupRunner
	authSvc   AuthService
	sessions  *auth.SessionRegistry
	profiles  *profile.Store
	platforms *platform.Registry
	saver     storage.ContentSaver
	idGen     crawl.IDGenerator
	clock     crawl.Clock
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	cfg config.Config,
	logger *zap.Logger,
	setup SetupRunner,
	authSvc AuthService,
	sessions *auth.SessionRegistry,
	profiles *profile.Store,
	platforms *platform.Registry,
	saver storage.ContentSaver,
	idGen crawl.IDGenerator,
	clock crawl.Clock,
) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		setup:     setup,
		authSvc:   authSvc,
		sessions:  sessions,
		profiles:  profiles,
		platforms: platforms,
		saver:     saver,
		idGen:     idGen,
		clock:     clock,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/setup", s.setupProfile)
			r.Post("/crawl", s.crawlWithAuth)
			r.Post("/markdown", s.markdownWithAuth)
			r.Get("/profiles", s.listProfiles)
			r.Delete("/profiles/{site_name}", s.deleteProfile)
			r.Post("/verify/{site_name}", s.verifyLogin)
			r.Get("/sessions/{site_name}", s.sessionStatus)
			r.Post("/sessions/{site_name}/close", s.closeSession)
		})
		r.Route("/platforms", func(r chi.Router) {
			r.Get("/", s.listPlatforms)
			r.Post("/links", s.extractLinks)
			r.Post("/content", s.crawlContent)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Profile storage is the only hard dependency at startup.
	if _, err := s.profiles.List(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeFailure(w, CodeInternalError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
