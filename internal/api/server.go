package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chadmayfield/sensord/internal/service"
	"github.com/chadmayfield/sensord/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the REST API server.
type Server struct {
	httpServer *http.Server
	handlers   *Handlers
}

// NewServer creates a new API server with all routes registered. Each server
// owns its own Prometheus registry.
func NewServer(s store.Store, logger *slog.Logger) *Server {
	reg := prometheus.NewRegistry()
	stats := newAPIMetrics(reg, s, logger)

	h := &Handlers{
		Store:     s,
		Sensors:   service.NewSensorService(s, logger),
		Metrics:   service.NewMetricService(s, s, logger),
		Logger:    logger,
		StartTime: time.Now(),
		stats:     stats,
	}

	mux := http.NewServeMux()

	// API routes.
	mux.HandleFunc("POST /api/v1/sensors", h.CreateSensor)
	mux.HandleFunc("GET /api/v1/sensors", h.ListSensors)
	mux.HandleFunc("GET /api/v1/sensors/{sensor_id}", h.GetSensor)
	mux.HandleFunc("POST /api/v1/sensors/{sensor_id}/metrics", h.RecordMetric)
	mux.HandleFunc("GET /api/v1/metrics/query", h.QueryMetrics)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Apply middleware (outermost runs first).
	var handler http.Handler = mux
	handler = APIHeaders("/api/")(handler)
	handler = CORS("")(handler) // Empty string disables CORS headers.
	handler = stats.Instrument(handler)
	handler = Logger(logger)(handler)
	handler = RequestID(handler)
	handler = Recovery(logger)(handler)

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, handlers: h}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe starts the HTTP server. Blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer.Addr = addr
	s.handlers.Logger.Info("api server starting", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// SetVersion sets the version string for the health endpoint.
func (s *Server) SetVersion(v string) { s.handlers.Version = v }

// SetStorageInfo sets storage driver and path for the health endpoint.
func (s *Server) SetStorageInfo(driver, path string) {
	s.handlers.StorageDriver = driver
	s.handlers.StoragePath = path
}
