package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes collectors of reg on /metrics.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

func NewServer(addr string, reg *prometheus.Registry, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second, //nolint: mnd
		},
		logger: logger,
	}
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("metrics server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("running server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint: mnd
	defer cancel()
	if err := s.httpServer.Shutdown(sdCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	s.logger.Info().Msg("metrics server stopped")
	return fmt.Errorf("running context: %w", ctx.Err())
}
