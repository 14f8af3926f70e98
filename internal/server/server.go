// Package server implements the HTTP control plane: the page registry,
// console capture, and recording engine endpoints spec'd for driving a
// fleet of named browser pages over chromedp.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/browserstudio/internal/auth"
	"github.com/user/browserstudio/internal/config"
	"github.com/user/browserstudio/internal/recording"
	"github.com/user/browserstudio/internal/registry"
)

// Server is the HTTP control plane bound to a page registry and CDP
// websocket endpoint.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	registry   *registry.Registry
	authMgr    *auth.Manager
	wsEndpoint string

	startTime  time.Time
	router     *chi.Mux
	httpServer *http.Server

	pages *pageHandler
}

// New creates a Server. wsEndpoint is the CDP websocket endpoint exposed by
// the browser allocator that owns reg's pages; authMgr may be nil to run
// without bearer-token auth.
func New(cfg *config.Config, logger *zap.Logger, reg *registry.Registry, rec *recording.Engine, authMgr *auth.Manager, wsEndpoint string) *Server {
	s := &Server{
		config:     cfg,
		logger:     logger,
		registry:   reg,
		authMgr:    authMgr,
		wsEndpoint: wsEndpoint,
		startTime:  time.Now(),
		pages:      newPageHandler(reg, rec, logger, wsEndpoint),
	}

	s.router = s.newRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.Server.Timeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.Timeout) * time.Second,
	}

	return s
}

func (s *Server) newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(zapRequestLogger(s.logger))

	r.Get("/health", s.healthHandler)
	r.Get("/", s.pages.wsEndpointHandler)

	r.Route("/pages", func(r chi.Router) {
		r.Get("/", s.pages.list)

		mutating := auth.Middleware(s.authMgr)
		r.With(mutating).Post("/", s.pages.create)

		r.Route("/{name}", func(r chi.Router) {
			r.With(mutating).Delete("/", s.pages.remove)
			r.Get("/console", s.pages.consoleLogs)
			r.With(mutating).Delete("/console", s.pages.clearConsoleLogs)
			r.Get("/recording/status", s.pages.recordingStatus)
			r.With(mutating).Post("/recording/start", s.pages.recordingStart)
			r.With(mutating).Post("/recording/stop", s.pages.recordingStop)
			r.Get("/video", s.pages.video)
		})
	})

	return r
}

// Router exposes the configured chi router, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start begins listening for HTTP requests. Blocks until Shutdown or a
// listener error.
func (s *Server) Start() error {
	s.logger.Info("server: listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns the server uptime in seconds.
func (s *Server) Uptime() int64 {
	return int64(time.Since(s.startTime).Seconds())
}

// requestID stamps every request with a uuid, using chi's own RequestIDKey
// so middleware.GetReqID and anything downstream that reads it keep working.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func zapRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("server: request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
