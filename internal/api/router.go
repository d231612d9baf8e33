// Package api is the spectator HTTP surface: race state, live leaderboard,
// results, rendered frames and a websocket feed.
package api

import (
	"io"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"roach-race/internal/game"
	"roach-race/internal/leaderboard"
	"roach-race/internal/race"
)

// EngineInterface defines the race engine methods used by the API.
// Keep it minimal so tests can mock it without a tick loop.
type EngineInterface interface {
	// GetSnapshot returns the latest lock-free race snapshot
	GetSnapshot() *game.RaceSnapshot
	// Results returns the final ranking, nil while the race runs
	Results() []race.RankEntry
	// Leaderboard ranks racers by live speed
	Leaderboard() *leaderboard.Leaderboard
	// RaceID identifies the current race
	RaceID() string
	// Restart discards the current race and starts a new one
	Restart() error
}

// FrameRenderer turns a snapshot into a PNG
type FrameRenderer interface {
	EncodePNG(w io.Writer, snap *game.RaceSnapshot) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000,
//	        Burst:             1000,
//	    },
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the race engine (required)
	Engine EngineInterface

	// Renderer serves /api/frame.png. Optional; the route answers 503 without it.
	Renderer FrameRenderer

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one is created from RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is used only if RateLimiter is nil. Defaults to DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// RestartLimiter sits in front of POST /api/race/restart on top of
	// RateLimiter. If nil, one is created from RestartLimitConfig.
	RestartLimiter *IPRateLimiter

	// RestartLimitConfig defaults to RestartRateLimitConfig.
	RestartLimitConfig *RateLimitConfig

	// CORSOrigins lists allowed origins. Nil allows localhost only.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

type routerHandlers struct {
	engine   EngineInterface
	renderer FrameRenderer
	requests *IPRateLimiter
	restarts *IPRateLimiter
}

// NewRouter constructs the HTTP router with all middleware and routes.
// It opens no listeners; the only goroutines it may start are the rate
// limiters' sweep loops when no limiter is supplied.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - order matters
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	restartLimiter := cfg.RestartLimiter
	if restartLimiter == nil {
		restartCfg := RestartRateLimitConfig
		if cfg.RestartLimitConfig != nil {
			restartCfg = *cfg.RestartLimitConfig
		}
		restartLimiter = NewRestartRateLimiter(restartCfg)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(cfg.CORSOrigins),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	h := &routerHandlers{
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
		requests: rateLimiter,
		restarts: restartLimiter,
	}

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Get("/leaderboard", h.handleGetLeaderboard)

		r.Get("/results", h.handleGetResults)
		r.Get("/results.txt", h.handleGetResultsText)
		r.Get("/results/{rank}", h.handleGetResultAt)

		r.Get("/frame.png", h.handleGetFrame)

		r.With(restartLimiter.Middleware).Post("/race/restart", h.handleRestart)
	})

	return r
}

func corsOrigins(configured []string) []string {
	if configured != nil {
		return configured
	}
	return []string{
		"http://localhost:*",
		"http://127.0.0.1:*",
	}
}
