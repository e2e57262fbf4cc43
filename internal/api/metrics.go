package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/chadmayfield/sensord/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricPrefix = "sensord_"

type apiMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	recorded *prometheus.CounterVec
	queries  *prometheus.CounterVec
}

func newAPIMetrics(reg prometheus.Registerer, sensors store.SensorStore, logger *slog.Logger) *apiMetrics {
	m := &apiMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		recorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "metrics_recorded_total",
				Help: "Accepted metric writes by metric type",
			},
			[]string{"metric_type"},
		),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "metric_queries_total",
				Help: "Metric queries by mode",
			},
			[]string{"mode"},
		),
	}

	reg.MustRegister(
		m.requests,
		m.latency,
		m.recorded,
		m.queries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "sensors_registered",
				Help: "Registered sensors",
			},
			func() float64 { return countSensors(sensors, logger) },
		),
	)
	return m
}

func countSensors(s store.SensorStore, logger *slog.Logger) float64 {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sensors, err := s.ListSensors(ctx)
	if err != nil {
		logger.Warn("metrics: listing sensors failed", "error", err)
		return 0
	}
	return float64(len(sensors))
}

// Instrument records request counts and latency keyed by the matched route
// pattern, so path parameters do not explode label cardinality.
func (m *apiMetrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
