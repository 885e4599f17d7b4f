package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/serve", func(r chi.Router) {
		r.Post("/", s.serveDirectory)
		r.Post("/stop", s.stopServe)
	})

	r.Post("/static", s.serveStatic)
	r.Post("/static/stop", s.stopStatic)

	r.Get("/status", s.getStatus)

	// Event streaming (SSE)
	r.Get("/event", s.streamEvents)

	r.Get("/health", s.health)
}
