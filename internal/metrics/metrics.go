// Package metrics exposes the Prometheus scrape endpoint for the application.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insight/internal/config"
)

// Handler returns the Prometheus HTTP handler for the default registry,
// where the ml and backtest collectors auto-register.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Server serves the metrics endpoint on its own port.
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer creates a metrics server from config.
func NewServer(cfg config.MetricsConfig, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, Handler())

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until the listener closes. Blocks; run in a goroutine.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("Metrics server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
