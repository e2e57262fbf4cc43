package domain

import (
	"fmt"
	"regexp"
	"time"
)

const (
	MaxSensorIDLength   = 255
	MaxSensorTypeLength = 100
)

var sensorIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Sensor is a registered sensor. It is never updated after creation.
type Sensor struct {
	SensorID   string    `json:"sensor_id"`
	SensorType string    `json:"sensor_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks the identity and type constraints of a sensor.
func (s *Sensor) Validate() error {
	if err := ValidateSensorID(s.SensorID); err != nil {
		return err
	}
	if s.SensorType == "" {
		return fmt.Errorf("%w: sensor_type is required", ErrValidation)
	}
	if len(s.SensorType) > MaxSensorTypeLength {
		return fmt.Errorf("%w: sensor_type exceeds %d characters", ErrValidation, MaxSensorTypeLength)
	}
	return nil
}

// ValidateSensorID checks that id is non-empty, short enough and uses only
// letters, digits, hyphens and underscores.
func ValidateSensorID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: sensor_id is required", ErrValidation)
	case len(id) > MaxSensorIDLength:
		return fmt.Errorf("%w: sensor_id exceeds %d characters", ErrValidation, MaxSensorIDLength)
	case !sensorIDPattern.MatchString(id):
		return fmt.Errorf("%w: sensor_id %q may only contain letters, digits, '-' and '_'", ErrValidation, id)
	}
	return nil
}
