package store

import (
	"context"
	"time"

	"github.com/chadmayfield/sensord/internal/domain"
)

// SensorStore persists sensor registrations.
type SensorStore interface {
	// AddSensor inserts a sensor. Returns domain.ErrDuplicateSensor if the ID exists.
	AddSensor(ctx context.Context, sensor *domain.Sensor) (*domain.Sensor, error)

	// SensorExists reports whether a sensor with the given ID is registered.
	SensorExists(ctx context.Context, sensorID string) (bool, error)

	// GetSensor returns the sensor, or nil if it is not registered.
	GetSensor(ctx context.Context, sensorID string) (*domain.Sensor, error)

	// ListSensors returns every registered sensor ordered by sensor ID.
	ListSensors(ctx context.Context) ([]domain.Sensor, error)
}

// MetricStore persists metric readings.
type MetricStore interface {
	// AddMetric inserts a reading. On a (sensor_id, metric_type, timestamp)
	// collision nothing is written and the previously stored row is returned.
	AddMetric(ctx context.Context, metric *domain.Metric) (*domain.Metric, error)

	// GetRawMetrics returns the readings matching filter.
	GetRawMetrics(ctx context.Context, filter domain.MetricFilter) ([]domain.Metric, error)

	// QueryAggregated reduces matching readings per (sensor_id, metric_type).
	// Series without matching readings are omitted.
	QueryAggregated(ctx context.Context, filter domain.MetricFilter, statistic domain.StatisticType) ([]domain.AggregatedMetricResult, error)

	// LatestTimestamps returns the newest timestamp per series that has data.
	LatestTimestamps(ctx context.Context, sensorIDs []string, metricTypes []domain.MetricType) (map[domain.SeriesKey]time.Time, error)
}

// Store is a complete storage backend.
// The memory, SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	SensorStore
	MetricStore

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
