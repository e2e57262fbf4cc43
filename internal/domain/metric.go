package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// Bounds for a recorded metric value, inclusive.
const (
	MinMetricValue = -1000.0
	MaxMetricValue = 1000.0
)

// MaxTimestampYear is the last year a reading may carry. Stored timestamps
// use a four-digit year and must order lexically.
const MaxTimestampYear = 9999

// MetricType is the kind of reading a sensor reports.
type MetricType string

const (
	Temperature MetricType = "temperature"
	Humidity    MetricType = "humidity"
)

// MetricTypes lists every known metric type.
var MetricTypes = []MetricType{Temperature, Humidity}

// Valid reports whether m is a known metric type.
func (m MetricType) Valid() bool {
	return slices.Contains(MetricTypes, m)
}

// ParseMetricType parses a metric type name, case-insensitively.
func ParseMetricType(s string) (MetricType, error) {
	m := MetricType(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown metric type %q", ErrValidation, s)
	}
	return m, nil
}

// Metric is a single time-stamped reading. (SensorID, MetricType, Timestamp)
// is its natural key.
type Metric struct {
	SensorID   string     `json:"sensor_id"`
	MetricType MetricType `json:"metric_type"`
	Timestamp  time.Time  `json:"timestamp"`
	Value      float64    `json:"value"`
}

// Key returns the series the metric belongs to.
func (m *Metric) Key() SeriesKey {
	return SeriesKey{SensorID: m.SensorID, MetricType: m.MetricType}
}

// Validate checks the metric type, timestamp and value bounds.
func (m *Metric) Validate() error {
	if m.SensorID == "" {
		return fmt.Errorf("%w: sensor_id is required", ErrValidation)
	}
	if !m.MetricType.Valid() {
		return fmt.Errorf("%w: unknown metric type %q", ErrValidation, m.MetricType)
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrValidation)
	}
	if y := m.Timestamp.UTC().Year(); y < 1 || y > MaxTimestampYear {
		return fmt.Errorf("%w: timestamp year %d outside [1, %d]", ErrValidation, y, MaxTimestampYear)
	}
	if math.IsNaN(m.Value) || m.Value < MinMetricValue || m.Value > MaxMetricValue {
		return fmt.Errorf("%w: value %v outside [%v, %v]", ErrValidation, m.Value, MinMetricValue, MaxMetricValue)
	}
	return nil
}

// SeriesKey identifies the readings of one metric type from one sensor.
type SeriesKey struct {
	SensorID   string
	MetricType MetricType
}

// AggregatedMetricResult is a statistic computed over one series.
type AggregatedMetricResult struct {
	SensorID   string        `json:"sensor_id"`
	MetricType MetricType    `json:"metric_type"`
	Statistic  StatisticType `json:"statistic"`
	Value      float64       `json:"value"`
}

// MetricFilter selects stored metrics. A nil slice leaves that dimension
// unfiltered; a non-nil empty slice matches nothing. Nil time bounds are
// open; set bounds are inclusive.
type MetricFilter struct {
	SensorIDs   []string
	MetricTypes []MetricType
	Start       *time.Time
	End         *time.Time
}

// Matches reports whether m satisfies every constraint of the filter.
func (f *MetricFilter) Matches(m *Metric) bool {
	if f.SensorIDs != nil && !slices.Contains(f.SensorIDs, m.SensorID) {
		return false
	}
	if f.MetricTypes != nil && !slices.Contains(f.MetricTypes, m.MetricType) {
		return false
	}
	if f.Start != nil && m.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && m.Timestamp.After(*f.End) {
		return false
	}
	return true
}

// Empty reports whether the filter can never match a row.
func (f *MetricFilter) Empty() bool {
	return (f.SensorIDs != nil && len(f.SensorIDs) == 0) ||
		(f.MetricTypes != nil && len(f.MetricTypes) == 0)
}
