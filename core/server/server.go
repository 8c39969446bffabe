package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/evservice/core/logger"
)

// Server wraps http.Server with context-driven graceful shutdown.
type Server struct {
	http            *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
	running         atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger (default: discard).
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithShutdownTimeout bounds how long Run waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithTLS serves HTTPS with cfg.
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) { s.http.TLSConfig = cfg }
}

// New creates a Server listening on addr with production defaults.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		http: &http.Server{
			Addr:              addr,
			ReadTimeout:       defaultReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      defaultWriteTimeout,
			IdleTimeout:       defaultIdleTimeout,
			MaxHeaderBytes:    defaultMaxHeaderBytes,
		},
		logger:          logger.Discard(),
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Run listens on the configured address and serves h until ctx is done.
func (s *Server) Run(ctx context.Context, h http.Handler) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, h)
}

// Serve serves h on ln until ctx is done, then shuts down gracefully.
// A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	if !s.running.CompareAndSwap(false, true) {
		_ = ln.Close()
		return ErrServerAlreadyRunning
	}
	defer s.running.Store(false)

	s.http.Handler = h
	s.http.BaseContext = func(net.Listener) context.Context { return context.WithoutCancel(ctx) }

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "starting server", slog.String("addr", ln.Addr().String()))
		var err error
		if s.http.TLSConfig != nil {
			err = s.http.ServeTLS(ln, "", "")
		} else {
			err = s.http.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.InfoContext(ctx, "shutting down server", logger.Duration(s.shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.ErrorContext(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	if err := <-errCh; err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "server stopped")
	return nil
}
