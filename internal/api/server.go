package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"roach-race/internal/config"
)

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	engine      EngineInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	restarts    *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates a new API server. renderer may be nil.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine EngineInterface, renderer FrameRenderer, cfg config.ServerConfig) *Server {
	s := &Server{
		engine:      engine,
		wsHub:       NewWebSocketHub(cfg.CORSOrigins),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
		restarts:    NewRestartRateLimiter(RestartRateLimitConfig),
	}

	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Renderer:    renderer,
		RateLimiter:    s.rateLimiter,
		RestartLimiter: s.restarts,
		CORSOrigins:    cfg.CORSOrigins,
	})

	// The hub instance is per server, so /ws lives outside NewRouter
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start runs the hub and broadcast loop, then serves HTTP until Stop.
// It returns nil after a clean shutdown.
func (s *Server) Start() error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.engine, DefaultBroadcastInterval)

	log.Printf("🌐 API server starting on %s", s.httpServer.Addr)
	log.Printf("🪳 Race state: http://localhost%s/api/state", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
//
// Example:
//
//	server := api.NewServer(engine, nil, config.DefaultServer())
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the WebSocket hub so race callbacks can push events
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Stop shuts the listener down and releases background workers.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	s.restarts.Stop()
	return err
}
