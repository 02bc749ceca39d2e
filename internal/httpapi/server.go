package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/ditto-upload/internal/catalog"
	"github.com/marmos91/ditto-upload/internal/logger"
	"github.com/marmos91/ditto-upload/internal/metrics"
	"github.com/marmos91/ditto-upload/internal/objectstore"
	"github.com/marmos91/ditto-upload/internal/upload"
)

// Server wraps net/http.Server with graceful shutdown: a goroutine
// running ListenAndServe, and Start blocking until ctx is cancelled or
// the server fails outright.
type Server struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once
}

// NewServer builds a Server listening on port, serving the router
// built from engine, cat, and objects. m may be nil to disable
// request metrics.
func NewServer(port int, engine *upload.Engine, cat catalog.Catalog, objects objectstore.Store, m *metrics.Metrics) *Server {
	router := NewRouter(engine, cat, objects, m)
	return &Server{
		port: port,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute, // large downloads may run long
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start serves until ctx is cancelled, then performs a graceful
// shutdown with a fixed timeout.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("HTTP server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
}

// Stop is safe to call multiple times and concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			logger.Error("HTTP server shutdown error", "error", err)
			return
		}
		logger.Info("HTTP server stopped gracefully")
	})
	return shutdownErr
}

// Port returns the configured listening port.
func (s *Server) Port() int {
	return s.port
}
