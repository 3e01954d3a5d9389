package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wave-arena/internal/game"
	"wave-arena/internal/results"
)

const shutdownTimeout = 5 * time.Second

// ServerConfig holds the server's collaborators.
type ServerConfig struct {
	Session     SessionController
	Bus         *game.EventBus // events streamed on /ws; nil streams snapshots only
	Results     results.Store
	Journal     JournalStatsSource
	AdminToken  string
	CORSOrigins []string
}

// Server is the HTTP API server with WebSocket support.
type Server struct {
	session     SessionController
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
}

// NewServer builds the router and hub. Background workers do not start until
// Run, so tests can construct a Server and use Router() directly.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		session:     cfg.Session,
		wsHub:       NewWebSocketHub(NewOriginPolicy(cfg.CORSOrigins)),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
	}

	s.router = NewRouter(RouterConfig{
		Session:     cfg.Session,
		Results:     cfg.Results,
		Journal:     cfg.Journal,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.CORSOrigins,
		AdminToken:  cfg.AdminToken,
	})
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	if cfg.Bus != nil {
		s.wsHub.Attach(cfg.Bus)
	}
	return s
}

// Run starts the hub and serves addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.wsHub.Run(hubCtx)
	go s.wsHub.RunStateLoop(hubCtx, s.session, StateBroadcastInterval)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("🌐 API server starting on %s", addr)
	return serveUntilDone(ctx, srv)
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Stop releases the bus subscription and the rate limiter.
func (s *Server) Stop() {
	s.wsHub.Detach()
	s.rateLimiter.Stop()
}

// serveUntilDone runs srv and shuts it down when ctx is done.
func serveUntilDone(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", srv.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down %s: %w", srv.Addr, err)
		}
		return nil
	}
}
