package frontdoor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/polisai/realm-finder/pkg/config"
)

// ServerConfig holds the collaborators of a Server.
type ServerConfig struct {
	Config   *config.Config
	Delegate http.Handler
	Metrics  *Metrics
	Tracing  *TracingManager
	Logger   *slog.Logger
}

// Server hosts the Dispatcher on the public listener and, when metrics are
// enabled, the Prometheus handler on a separate admin listener.
type Server struct {
	cfg     *config.Config
	tracing *TracingManager
	logger  *slog.Logger

	httpServer    *http.Server
	metricsServer *http.Server

	mu        sync.Mutex
	listener  net.Listener
	metricsLn net.Listener
	stopOnce  sync.Once
}

// NewServer wires a Dispatcher around cfg.Delegate.
func NewServer(cfg ServerConfig) *Server {
	c := cfg.Config
	if c == nil {
		c = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dispatcher := NewDispatcher(DispatcherConfig{
		Routing:  &c.Routing,
		Delegate: cfg.Delegate,
		Metrics:  cfg.Metrics,
		Tracing:  cfg.Tracing,
		Logger:   logger,
	})

	s := &Server{
		cfg:     c,
		tracing: cfg.Tracing,
		logger:  logger,
		httpServer: &http.Server{
			Handler:           RequestIDMiddleware(dispatcher),
			ReadHeaderTimeout: c.Server.ReadHeaderTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}

	if cfg.Metrics != nil && c.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(c.Metrics.Path, cfg.Metrics.Handler())
		s.metricsServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: c.Server.ReadHeaderTimeout,
		}
	}

	return s
}

// Listen binds the public listener (and the metrics listener, if enabled).
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to bind listener on %s: %w", s.cfg.Server.Address(), err)
	}

	if s.metricsServer != nil {
		mln, err := net.Listen("tcp", s.cfg.Metrics.ListenAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to bind metrics listener on %s: %w", s.cfg.Metrics.ListenAddr, err)
		}
		s.metricsLn = mln
	}

	s.listener = ln
	return nil
}

// Addr returns the bound public address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// MetricsAddr returns the bound metrics address, or nil when disabled.
func (s *Server) MetricsAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metricsLn == nil {
		return nil
	}
	return s.metricsLn.Addr()
}

// Start serves until ctx is cancelled or a listener fails, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln, mln := s.listener, s.metricsLn
	s.mu.Unlock()

	errCh := make(chan error, 2)

	s.logger.Info("Server listening",
		"addr", ln.Addr().String(),
		"prefix", s.cfg.Routing.Prefix,
		"health_path", s.cfg.Routing.HealthPath,
	)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if mln != nil {
		s.logger.Info("Metrics listening", "addr", mln.Addr().String(), "path", s.cfg.Metrics.Path)
		go func() {
			if err := s.metricsServer.Serve(mln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	stopErr := s.Stop(shutdownCtx)

	if serveErr != nil {
		return serveErr
	}
	return stopErr
}

// Stop gracefully stops both listeners and flushes traces. It is safe to
// call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping server")

		if stopErr := s.httpServer.Shutdown(ctx); stopErr != nil {
			s.logger.Error("Failed to shut down HTTP server", "error", stopErr)
			err = stopErr
		}

		if s.metricsServer != nil {
			if stopErr := s.metricsServer.Shutdown(ctx); stopErr != nil {
				s.logger.Error("Failed to shut down metrics server", "error", stopErr)
				err = errors.Join(err, stopErr)
			}
		}

		if stopErr := s.tracing.Shutdown(ctx); stopErr != nil {
			s.logger.Error("Failed to flush traces", "error", stopErr)
			err = errors.Join(err, stopErr)
		}
	})
	return err
}
