// Package server runs the HTTP listener under the fx lifecycle.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/finbooks/finbooks-auth/internal/config"
)

// HTTPServer wraps the stdlib server with logging.
type HTTPServer struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewHTTPServer builds the server from config and the assembled router.
func NewHTTPServer(cfg config.Config, handler http.Handler, logger *zap.Logger) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:              ":" + cfg.HTTPPort,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start begins serving. It returns once the listener stops.
func (s *HTTPServer) Start() {
	s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("http server stopped", zap.Error(err))
	}
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
