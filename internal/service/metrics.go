package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chadmayfield/sensord/internal/domain"
	"github.com/chadmayfield/sensord/internal/store"
)

// StatusRecorded is reported for every accepted metric write, including
// writes that collided with an existing reading.
const StatusRecorded = "data_recorded"

// MetricInput is a reading submitted for a sensor.
type MetricInput struct {
	MetricType domain.MetricType
	Timestamp  time.Time
	Value      float64
}

// RecordResult acknowledges a metric write.
type RecordResult struct {
	SensorID  string    `json:"sensor_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// MetricService records readings and answers aggregate queries.
type MetricService struct {
	metrics store.MetricStore
	sensors store.SensorStore
	logger  *slog.Logger
}

// NewMetricService creates a metric service over the given stores.
func NewMetricService(metrics store.MetricStore, sensors store.SensorStore, logger *slog.Logger) *MetricService {
	return &MetricService{metrics: metrics, sensors: sensors, logger: logger}
}

// Record validates and stores a reading for sensorID. The sensor must be
// registered; otherwise domain.ErrSensorNotFound is returned and nothing is
// written.
func (s *MetricService) Record(ctx context.Context, sensorID string, in MetricInput) (*RecordResult, error) {
	m := &domain.Metric{
		SensorID:   sensorID,
		MetricType: in.MetricType,
		Timestamp:  in.Timestamp,
		Value:      in.Value,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.sensors.SensorExists(ctx, sensorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("sensor %q: %w", sensorID, domain.ErrSensorNotFound)
	}

	if _, err := s.metrics.AddMetric(ctx, m); err != nil {
		return nil, err
	}
	return &RecordResult{SensorID: sensorID, Status: StatusRecorded, Timestamp: in.Timestamp}, nil
}
