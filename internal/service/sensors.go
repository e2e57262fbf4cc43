package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/chadmayfield/sensord/internal/domain"
	"github.com/chadmayfield/sensord/internal/store"
	"github.com/google/uuid"
)

// SensorService registers and looks up sensors.
type SensorService struct {
	store  store.SensorStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewSensorService creates a sensor service backed by s.
func NewSensorService(s store.SensorStore, logger *slog.Logger) *SensorService {
	return &SensorService{
		store:  s,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
}

// Create registers a sensor. An empty sensorID is replaced by a random UUID.
func (s *SensorService) Create(ctx context.Context, sensorType, sensorID string) (*domain.Sensor, error) {
	if sensorID == "" {
		sensorID = s.newID()
	}
	sensor := &domain.Sensor{
		SensorID:   sensorID,
		SensorType: sensorType,
		CreatedAt:  s.now(),
	}
	if err := sensor.Validate(); err != nil {
		return nil, err
	}

	created, err := s.store.AddSensor(ctx, sensor)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sensor registered", "sensor_id", created.SensorID, "sensor_type", created.SensorType)
	return created, nil
}

func (s *SensorService) List(ctx context.Context) ([]domain.Sensor, error) {
	return s.store.ListSensors(ctx)
}

func (s *SensorService) Exists(ctx context.Context, sensorID string) (bool, error) {
	return s.store.SensorExists(ctx, sensorID)
}

// Get returns the sensor, or nil if it is not registered.
func (s *SensorService) Get(ctx context.Context, sensorID string) (*domain.Sensor, error) {
	return s.store.GetSensor(ctx, sensorID)
}
