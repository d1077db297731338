// Package httpapi exposes the conversation, message, and file-transfer
// operations over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vkuznetsov-dev/cipherchat/internal/logging"
)

// Server wraps the gin engine and the net/http server lifecycle.
type Server struct {
	addr            string
	shutdownTimeout time.Duration
	engine          *gin.Engine
	logger          logging.Logger
}

func NewServer(addr string, shutdownTimeout time.Duration, h *Handlers, logger logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(), RequestLogger(logger))
	h.Register(engine)

	return &Server{
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		engine:          engine,
		logger:          logger.With("module", "http_server"),
	}
}

// Engine exposes the router for httptest-based tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests
// within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{Addr: s.addr, Handler: s.engine}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
