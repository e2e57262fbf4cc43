package domain

import "errors"

var (
	// ErrValidation is returned when input fails shape or range checks.
	ErrValidation = errors.New("domain: validation failed")
	// ErrSensorNotFound is returned when an operation references an unknown sensor.
	ErrSensorNotFound = errors.New("domain: sensor not found")
	// ErrDuplicateSensor is returned when registering an existing sensor_id.
	ErrDuplicateSensor = errors.New("domain: sensor already exists")
)

// StorageError wraps a backend failure that is not a domain condition.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err with the failed operation name. A nil err stays nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
