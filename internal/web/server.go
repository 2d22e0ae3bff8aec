// Package web exposes the control API: monitoring lifecycle, manual
// captures, alert history, and schedule inspection.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/jsvoboda/classwatch/internal/monitor"
	"github.com/jsvoboda/classwatch/internal/schedule"
	"github.com/jsvoboda/classwatch/internal/store"
)

// Server represents the control API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	log        *logrus.Logger
}

// Deps collects everything the API serves.
type Deps struct {
	Monitor  *monitor.Monitor
	Schedule *schedule.Resolver
	Alerts   store.NotificationStore
	Log      *logrus.Logger
}

// NewServer creates the control API server listening on host:port.
func NewServer(host string, port int, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		log:    deps.Log,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until it is shut down.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("starting control API")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down control API")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
