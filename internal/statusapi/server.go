package statusapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/agrobook/agrobook/internal/config"
	"github.com/agrobook/agrobook/internal/logger"
)

// Server runs the status endpoint on the configured local address.
type Server struct {
	server *http.Server
	logger *logger.Logger
}

func NewServer(handler *Handler, cfg config.ClientStatus, logger *logger.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              cfg.HTTPAddress,
			Handler:           handler.Init(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// RunServer starts serving and blocks until the server stops.
func (s *Server) RunServer() {
	s.logger.Info().Str("address", s.server.Addr).Msg("status server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error().Err(err).Msg("status server stopped")
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() {
	if err := s.server.Shutdown(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("status server shutdown")
	}
}
