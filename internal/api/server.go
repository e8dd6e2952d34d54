// ABOUTME: HTTP server for the fleet command surface: chi router, auth
// ABOUTME: middleware wiring, and graceful shutdown.

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wardenlabs/minefleet/internal/auth"
	"github.com/wardenlabs/minefleet/internal/fleet"
)

// Server exposes the fleet over HTTP.
type Server struct {
	http     *http.Server
	fleet    *fleet.Manager
	hub      *Hub
	versions map[string][]string
	logger   *slog.Logger
}

// New builds the API server. users resolves authenticated ids to accounts;
// versions is the supported-version list reported by GET /api/versions.
func New(addr string, mgr *fleet.Manager, users auth.UserStore, verifier auth.TokenVerifier, hub *Hub, versions map[string][]string) *Server {
	s := &Server{
		fleet:    mgr,
		hub:      hub,
		versions: versions,
		logger:   slog.Default().With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.HTTPAuthMiddleware(users, verifier))

		r.Route("/bots", func(r chi.Router) {
			r.Post("/", s.handleCreateBot)
			r.Get("/", s.handleListBots)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetBot)
				r.Delete("/", s.handleDeleteBot)
				r.Post("/start", s.handleStartBot)
				r.Post("/stop", s.handleStopBot)
				r.Post("/rename", s.handleRenameBot)
				r.Post("/message", s.handleSendMessage)
				r.Post("/command", s.handleExecuteCommand)
			})
		})

		r.Get("/stats", s.handleStats)
		r.Get("/versions", s.handleVersions)
		r.Get("/events", s.hub.ServeWS)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start runs the HTTP server and blocks until shutdown or error.
func (s *Server) Start() error {
	s.logger.Info("api server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully within the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("api server shutting down")
	return s.http.Shutdown(ctx)
}
