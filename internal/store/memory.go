package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/chadmayfield/sensord/internal/domain"
)

type metricKey struct {
	sensorID   string
	metricType domain.MetricType
	unixNano   int64
}

// MemoryStore implements Store in process memory. State lives only as long
// as the instance; nothing is shared between instances.
type MemoryStore struct {
	mu      sync.RWMutex
	sensors map[string]domain.Sensor
	metrics []domain.Metric
	index   map[metricKey]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sensors: make(map[string]domain.Sensor),
		index:   make(map[metricKey]int),
	}
}

func (s *MemoryStore) AddSensor(_ context.Context, sensor *domain.Sensor) (*domain.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sensors[sensor.SensorID]; ok {
		return nil, domain.ErrDuplicateSensor
	}
	s.sensors[sensor.SensorID] = *sensor
	out := *sensor
	return &out, nil
}

func (s *MemoryStore) SensorExists(_ context.Context, sensorID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sensors[sensorID]
	return ok, nil
}

func (s *MemoryStore) GetSensor(_ context.Context, sensorID string) (*domain.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sensors[sensorID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *MemoryStore) ListSensors(_ context.Context) ([]domain.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Sensor, 0, len(s.sensors))
	for _, st := range s.sensors {
		result = append(result, st)
	}
	slices.SortFunc(result, func(a, b domain.Sensor) int { return cmp.Compare(a.SensorID, b.SensorID) })
	return result, nil
}

func (s *MemoryStore) AddMetric(_ context.Context, metric *domain.Metric) (*domain.Metric, error) {
	key := metricKey{
		sensorID:   metric.SensorID,
		metricType: metric.MetricType,
		unixNano:   metric.Timestamp.UnixNano(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[key]; ok {
		existing := s.metrics[i]
		return &existing, nil
	}
	s.index[key] = len(s.metrics)
	s.metrics = append(s.metrics, *metric)
	out := *metric
	return &out, nil
}

func (s *MemoryStore) GetRawMetrics(_ context.Context, filter domain.MetricFilter) ([]domain.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(&filter), nil
}

func (s *MemoryStore) filter(f *domain.MetricFilter) []domain.Metric {
	var result []domain.Metric
	if f.Empty() {
		return result
	}
	for i := range s.metrics {
		if f.Matches(&s.metrics[i]) {
			result = append(result, s.metrics[i])
		}
	}
	return result
}

func (s *MemoryStore) QueryAggregated(_ context.Context, filter domain.MetricFilter, statistic domain.StatisticType) ([]domain.AggregatedMetricResult, error) {
	if err := statistic.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	rows := s.filter(&filter)
	s.mu.RUnlock()

	groups := make(map[domain.SeriesKey][]float64)
	var order []domain.SeriesKey
	for i := range rows {
		k := rows[i].Key()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], rows[i].Value)
	}
	sortSeriesKeys(order)

	result := make([]domain.AggregatedMetricResult, 0, len(order))
	for _, k := range order {
		v, err := statistic.Reduce(groups[k])
		if err != nil {
			return nil, err
		}
		result = append(result, domain.AggregatedMetricResult{
			SensorID:   k.SensorID,
			MetricType: k.MetricType,
			Statistic:  statistic,
			Value:      v,
		})
	}
	return result, nil
}

func (s *MemoryStore) LatestTimestamps(_ context.Context, sensorIDs []string, metricTypes []domain.MetricType) (map[domain.SeriesKey]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[domain.SeriesKey]time.Time)
	for i := range s.metrics {
		m := &s.metrics[i]
		if !slices.Contains(sensorIDs, m.SensorID) || !slices.Contains(metricTypes, m.MetricType) {
			continue
		}
		k := m.Key()
		if cur, ok := latest[k]; !ok || m.Timestamp.After(cur) {
			latest[k] = m.Timestamp
		}
	}
	return latest, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func sortSeriesKeys(keys []domain.SeriesKey) {
	slices.SortFunc(keys, func(a, b domain.SeriesKey) int {
		if c := cmp.Compare(a.SensorID, b.SensorID); c != 0 {
			return c
		}
		return cmp.Compare(a.MetricType, b.MetricType)
	})
}
