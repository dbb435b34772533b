// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/manovay/AP-Study-Guide-Generator/internal/logger"
	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8000"

	// MaxRequestBodySize bounds request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// DefaultRequestTimeout bounds a single request, generation included.
	DefaultRequestTimeout = 120 * time.Second

	// WelcomeMessage is returned by the root route.
	WelcomeMessage = "Welcome to TooturAI Backend"
)

// ============================================================================
// BACKEND
// ============================================================================

// Backend is the set of operations the routes need. service.Service
// implements it.
type Backend interface {
	remote.Remote
	SaveGuide(ctx context.Context, ownerEmail, title, content string, turns []remote.TurnRecord) (remote.GuideRecord, error)
	CreateUser(ctx context.Context, u remote.User) (remote.User, bool, error)
	CheckUser(ctx context.Context, email string) (bool, error)
}

// ============================================================================
// CONFIG
// ============================================================================

// Config controls the HTTP server.
type Config struct {
	Addr           string
	CORSOrigins    []string
	RateLimit      float64 // requests per second per client IP; 0 disables
	RateBurst      int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// DefaultConfig returns the defaults used by "tootur serve".
func DefaultConfig() Config {
	return Config{
		Addr:           DefaultAddr,
		CORSOrigins:    []string{"*"},
		RateLimit:      5,
		RateBurst:      20,
		RequestTimeout: DefaultRequestTimeout,
		MaxBodyBytes:   MaxRequestBodySize,
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server serves the study guide API.
type Server struct {
	cfg     Config
	backend Backend
	router  *gin.Engine
	limiter *RateLimiter
	server  *http.Server
	hub     *Hub
	log     *slog.Logger
}

// New creates a server for backend. Zero config fields take defaults.
func New(backend Backend, cfg Config) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = def.CORSOrigins
	}

	s := &Server{
		cfg:     cfg,
		backend: backend,
		log:     logger.WithComponent("server"),
	}
	s.hub = NewHub(s.log)
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	s.router = s.setupRouter()
	return s
}

// setupRouter builds the gin engine with middleware and routes.
func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(
		RequestID(),
		Recovery(s.log),
		RequestLogger(s.log),
		SecurityHeaders(),
		CORS(&CORSConfig{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", HeaderRequestID},
			MaxAge:         86400,
		}),
		BodyLimit(s.cfg.MaxBodyBytes),
	)
	if s.limiter != nil {
		r.Use(RateLimit(s.limiter))
	}

	// Long-lived; registered before the request timeout applies.
	r.GET(remote.PathEvents, s.handleEvents)

	r.Use(Timeout(s.cfg.RequestTimeout))

	r.NoRoute(func(c *gin.Context) {
		abortDetail(c, http.StatusNotFound, "Not Found")
	})

	r.GET(remote.PathRoot, s.handleRoot)
	r.POST(remote.PathGenerate, s.handleGenerate)

	api := r.Group("/api")
	{
		api.GET("/get-study-guides", s.handleListGuides)
		api.POST("/update-guide", s.handleUpdateGuide)
		api.POST("/rename-study-guide", s.handleRenameGuide)
		api.POST("/delete-study-guide", s.handleDeleteGuide)
		api.POST("/save-study-guide", s.handleSaveGuide)
		api.POST("/users", s.handleCreateUser)
		api.GET("/users/check", s.handleCheckUser)
	}
	return r
}

// Hub returns the change feed, for embedding.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", s.cfg.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the server and its background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.hub.Close()
	if s.server == nil {
		return nil
	}
	s.log.Info("server shutting down")
	return s.server.Shutdown(ctx)
}
