// Package gateway serves the bot's health and status over HTTP.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/soyeahso/annabot/internal/config"
	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/logging"
	"github.com/soyeahso/annabot/internal/routing"
)

// SessionSource reports the chat session.
type SessionSource interface {
	Status() domain.Session
	SelfID() string
}

// StatsSource reports message counters.
type StatsSource interface {
	Stats() routing.Stats
}

// Server is the status HTTP server.
type Server struct {
	cfg     config.GatewayConfig
	session SessionSource
	stats   StatsSource
	log     *logging.Logger

	startedAt time.Time

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
}

// NewServer creates a status server. stats may be nil.
func NewServer(cfg config.GatewayConfig, session SessionSource, stats StatsSource, log *logging.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = config.DefaultGatewayAddr
	}
	return &Server{
		cfg:       cfg,
		session:   session,
		stats:     stats,
		log:       log.Sub("gateway"),
		startedAt: time.Now(),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)
	return r
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("status server ready")

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("status server shutdown")
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}

// Addr returns the bound address once Start is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
