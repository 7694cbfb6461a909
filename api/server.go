package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/isdmx/codeide/config"
	"github.com/isdmx/codeide/execution"
	"github.com/isdmx/codeide/language"
	"github.com/isdmx/codeide/sandbox"
	"github.com/isdmx/codeide/storage"
)

// Executor runs submissions. *execution.Service implements it.
type Executor interface {
	Execute(ctx context.Context, req execution.Request) (sandbox.Result, error)
}

// Server is the HTTP server for the editor backend
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *language.Registry
	exec     Executor
	store    storage.Store
	mcp      http.Handler
	router   chi.Router
	http     *http.Server
	now      func() time.Time
}

// Option defines a functional option for Server
type Option func(*Server)

// WithMCPHandler mounts h at /mcp
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// New creates a Server and registers its routes
func New(cfg *config.Config, logger *zap.Logger, registry *language.Registry, exec Executor, store storage.Store, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		exec:     exec,
		store:    store,
		router:   chi.NewRouter(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Mcp-Session-Id"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)
		r.Use(s.limitBody)

		r.Get("/health", s.handleHealth)
		r.Post("/execute", s.handleExecute)
		r.Get("/languages", s.handleLanguages)

		r.Get("/files", s.handleListFiles)
		r.Post("/files", s.handleCreateFile)
		r.Get("/files/{id}", s.handleGetFile)
		r.Put("/files/{id}", s.handleUpdateFile)
		r.Delete("/files/{id}", s.handleDeleteFile)
	})

	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
	}
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	limit := int64(s.cfg.Server.MaxBodyMB) * 1024 * 1024
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			s.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()

		next.ServeHTTP(ww, r)
	})
}

// Start binds the listener and serves in the background
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()), zap.Bool("mcp", s.mcp != nil))
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout())
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
