// Package server exposes the devserve core over HTTP for host
// collaborators: serve a directory, stop the active preview, run the
// static fallback directly, and stream status events.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/devserve-run/devserve/internal/event"
	"github.com/devserve-run/devserve/internal/orchestrator"
	"github.com/devserve-run/devserve/pkg/types"
)

// Config holds daemon configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default daemon configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         7321,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for SSE
	}
}

// Server is the HTTP daemon.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server
	bus     *event.Bus
	orch    *orchestrator.Orchestrator

	// current is the last successful serve result, kept so /status and
	// /serve/stop can act on it. Handlers run on per-request goroutines,
	// so every access goes through currentMu.
	currentMu sync.Mutex
	current   *orchestrator.ServeResult
}

// setCurrent records the active serve result.
func (s *Server) setCurrent(result *orchestrator.ServeResult) {
	s.currentMu.Lock()
	s.current = result
	s.currentMu.Unlock()
}

// takeCurrent clears and returns the active serve result, if any.
func (s *Server) takeCurrent() *orchestrator.ServeResult {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()
	result := s.current
	s.current = nil
	return result
}

// currentResult returns the active serve result without clearing it.
func (s *Server) currentResult() *orchestrator.ServeResult {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()
	return s.current
}

// New creates a daemon around an orchestrator and its bus.
func New(cfg *Config, appConfig *types.Config, bus *event.Bus) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if bus == nil {
		bus = event.NewBus()
	}

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		bus:    bus,
		orch:   orchestrator.New(appConfig, bus),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Bus returns the daemon's event bus.
func (s *Server) Bus() *event.Bus { return s.bus }

// setupMiddleware configures middleware for the daemon.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
}

// Start starts the HTTP daemon.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the daemon, tearing down whatever
// preview is active.
func (s *Server) Shutdown(ctx context.Context) error {
	s.orch.StopActiveProcess()
	s.orch.StopActiveStaticServer()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the router for tests.
func (s *Server) Router() http.Handler { return s.router }
