package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"wave-arena/internal/game"
	"wave-arena/internal/results"
)

// SessionController is the part of game.Session the API uses.
// Keep it minimal so tests can fake it without running a simulation.
type SessionController interface {
	// Snapshot returns the latest immutable snapshot without locking
	Snapshot() *game.Snapshot
	// Do queues a command and waits for the tick that applies it
	Do(ctx context.Context, cmd game.Command) error
	// QueueStats returns command queue counters
	QueueStats() game.QueueStats
	// Seed returns the session's random seed
	Seed() uint64
}

// JournalStatsSource reports event journal counters.
type JournalStatsSource interface {
	Stats() game.JournalStats
}

// DefaultCommandTimeout bounds how long a handler waits for the tick to apply a command.
const DefaultCommandTimeout = 2 * time.Second

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
//	cfg := api.RouterConfig{
//	    Session: fakeSession,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	}
//	ts := httptest.NewServer(api.NewRouter(cfg))
type RouterConfig struct {
	// Session is the running encounter (required)
	Session SessionController

	// Results serves /api/results; nil answers 503 there
	Results results.Store

	// Journal adds event journal counters to /api/stats
	Journal JournalStatsSource

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one is created from RateLimitConfig and the caller cannot stop it.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses DefaultAllowedOrigins.
	CORSOrigins []string

	// AdminToken guards the mutating routes; empty leaves them open
	AdminToken string

	// CommandTimeout defaults to DefaultCommandTimeout
	CommandTimeout time.Duration

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

type routerHandlers struct {
	session        SessionController
	results        results.Store
	journal        JournalStatsSource
	rateLimiter    *IPRateLimiter
	commandTimeout time.Duration
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// It starts no listeners, so it is safe to use with httptest.NewServer. The one
// goroutine it may start is the cleanup loop of a rate limiter it had to create
// itself; pass RateLimiter to own that.
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

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   NewOriginPolicy(cfg.CORSOrigins).Patterns(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", AdminTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	h := &routerHandlers{
		session:        cfg.Session,
		results:        cfg.Results,
		journal:        cfg.Journal,
		rateLimiter:    rateLimiter,
		commandTimeout: timeout,
	}

	auth := NewAdminAuth(cfg.AdminToken)
	if !auth.Enabled() {
		log.Println("⚠️ No admin token set, control routes are open")
	}

	r.Route("/api", func(r chi.Router) {
		// Read-only
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/offer", h.handleGetOffer)
		r.Get("/results", h.handleGetResults)

		// Control
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Post("/offer/select", h.handleSelectReward)
			r.Post("/offer/skip", h.handleSkipReward)
			r.Post("/encounter/restart", h.handleRestart)
			r.Post("/hero/move", h.handleHeroMove)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	return r
}

// metricsMiddleware records latency per route pattern, keeping label cardinality bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
