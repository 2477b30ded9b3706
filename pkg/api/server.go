package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/getmockd/mockmesh/pkg/config"
	"github.com/getmockd/mockmesh/pkg/logging"
)

// Server serves a Handler on the configured address.
type Server struct {
	cfg        config.ServerConfiguration
	handler    http.Handler
	log        *slog.Logger
	httpServer *http.Server
	listener   net.Listener
	mu         sync.RWMutex
	running    bool
	startTime  time.Time
	done       chan struct{}
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger for the server.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer creates a Server. Zero timeouts in cfg fall back to the defaults.
func NewServer(cfg config.ServerConfiguration, handler http.Handler, opts ...ServerOption) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = config.DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultWriteTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = config.DefaultShutdownTimeout
	}

	s := &Server{
		cfg:     cfg,
		handler: handler,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.Component(s.log, "server")
	return s
}

// Start binds the listener and serves in the background. The listener is
// bound before Start returns so Addr is valid immediately.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeoutDuration(),
		WriteTimeout: s.cfg.WriteTimeoutDuration(),
	}
	s.done = make(chan struct{})

	srv, done := s.httpServer, s.done
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	s.startTime = time.Now()
	s.log.Info("starting HTTP server", "addr", ln.Addr().String())
	return nil
}

// Stop gracefully shuts down the server, waiting up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeoutDuration())
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	<-s.done
	s.running = false
	s.log.Info("HTTP server stopped")

	if err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr()
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns seconds since Start, or 0 when stopped.
func (s *Server) Uptime() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return int(time.Since(s.startTime).Seconds())
}
