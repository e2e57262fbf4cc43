package service

import (
	"context"
	"fmt"
	"time"

	"github.com/chadmayfield/sensord/internal/domain"
)

// Range limits for a query with both bounds, in whole days.
const (
	MinRangeDays = 1
	MaxRangeDays = 31
)

// QueryWindowDays is the span used to complete a range given only one bound.
const QueryWindowDays = 31

const day = 24 * time.Hour

// MetricQuery describes an aggregate query. A nil SensorIDs targets every
// registered sensor. With no dates the query returns the latest reading of
// each series.
type MetricQuery struct {
	SensorIDs []string             `json:"sensor_ids"`
	Metrics   []domain.MetricType  `json:"metrics"`
	Statistic domain.StatisticType `json:"statistic"`
	StartDate *time.Time           `json:"start_date"`
	EndDate   *time.Time           `json:"end_date"`
}

// Latest reports whether the query has no date bounds.
func (q *MetricQuery) Latest() bool {
	return q.StartDate == nil && q.EndDate == nil
}

// Complete returns a copy of q with a one-sided range widened to a
// QueryWindowDays window in the given bound's location. Queries with both
// or neither bound are returned unchanged.
func (q MetricQuery) Complete() MetricQuery {
	switch {
	case q.StartDate != nil && q.EndDate == nil:
		end := q.StartDate.AddDate(0, 0, QueryWindowDays)
		q.EndDate = &end
	case q.StartDate == nil && q.EndDate != nil:
		start := q.EndDate.AddDate(0, 0, -QueryWindowDays)
		q.StartDate = &start
	}
	return q
}

// Validate checks required fields and, when both bounds are present, that
// the range spans between MinRangeDays and MaxRangeDays whole days.
func (q *MetricQuery) Validate() error {
	if len(q.Metrics) == 0 {
		return fmt.Errorf("%w: at least one metric type must be specified", domain.ErrValidation)
	}
	for _, m := range q.Metrics {
		if !m.Valid() {
			return fmt.Errorf("%w: unknown metric type %q", domain.ErrValidation, m)
		}
	}
	if q.Statistic == "" {
		return fmt.Errorf("%w: statistic type must be specified", domain.ErrValidation)
	}
	if err := q.Statistic.Validate(); err != nil {
		return err
	}

	for _, bound := range []*time.Time{q.StartDate, q.EndDate} {
		if bound == nil {
			continue
		}
		if y := bound.UTC().Year(); y < 1 || y > domain.MaxTimestampYear {
			return fmt.Errorf("%w: date year %d outside [1, %d]", domain.ErrValidation, y, domain.MaxTimestampYear)
		}
	}

	if q.StartDate == nil || q.EndDate == nil {
		return nil
	}
	if !q.StartDate.Before(*q.EndDate) {
		return fmt.Errorf("%w: start date must be before end date", domain.ErrValidation)
	}
	days := int(q.EndDate.Sub(*q.StartDate) / day)
	if days < MinRangeDays {
		return fmt.Errorf("%w: date range must be at least %d day", domain.ErrValidation, MinRangeDays)
	}
	if days > MaxRangeDays {
		return fmt.Errorf("%w: date range cannot exceed %d days", domain.ErrValidation, MaxRangeDays)
	}
	return nil
}

// StatResult is one statistic value in a query response.
type StatResult struct {
	StatisticType domain.StatisticType `json:"statistic_type"`
	Value         float64              `json:"value"`
}

// QueryResult is the statistic for one series.
type QueryResult struct {
	SensorID string            `json:"sensor_id"`
	Metric   domain.MetricType `json:"metric"`
	Stat     StatResult        `json:"stat"`
}

// QueryResponse echoes the completed query alongside its results.
type QueryResponse struct {
	Query   MetricQuery   `json:"query"`
	Results []QueryResult `json:"results"`
}

// Query completes a partial date range, runs the aggregate and shapes the
// response. Series without data are omitted rather than reported as zero.
func (s *MetricService) Query(ctx context.Context, q MetricQuery) (*QueryResponse, error) {
	completed := q.Complete()

	aggs, err := s.Aggregate(ctx, completed)
	if err != nil {
		return nil, err
	}

	results := make([]QueryResult, 0, len(aggs))
	for _, a := range aggs {
		results = append(results, QueryResult{
			SensorID: a.SensorID,
			Metric:   a.MetricType,
			Stat:     StatResult{StatisticType: completed.Statistic, Value: a.Value},
		})
	}
	return &QueryResponse{Query: completed, Results: results}, nil
}

// Aggregate validates q and computes its aggregates without completing the
// date range. With no dates each series is reduced over its latest reading
// only.
func (s *MetricService) Aggregate(ctx context.Context, q MetricQuery) ([]domain.AggregatedMetricResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	targets, err := s.targetSensorIDs(ctx, q.SensorIDs)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return []domain.AggregatedMetricResult{}, nil
	}

	if q.Latest() {
		return s.aggregateLatest(ctx, targets, q.Metrics, q.Statistic)
	}

	return s.metrics.QueryAggregated(ctx, domain.MetricFilter{
		SensorIDs:   targets,
		MetricTypes: q.Metrics,
		Start:       q.StartDate,
		End:         q.EndDate,
	}, q.Statistic)
}

func (s *MetricService) aggregateLatest(ctx context.Context, sensorIDs []string, metrics []domain.MetricType, stat domain.StatisticType) ([]domain.AggregatedMetricResult, error) {
	latest, err := s.metrics.LatestTimestamps(ctx, sensorIDs, metrics)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("querying latest metrics", "sensors", len(sensorIDs), "series_with_data", len(latest))

	results := []domain.AggregatedMetricResult{}
	for _, id := range sensorIDs {
		for _, m := range metrics {
			ts, ok := latest[domain.SeriesKey{SensorID: id, MetricType: m}]
			if !ok {
				continue
			}
			aggs, err := s.metrics.QueryAggregated(ctx, domain.MetricFilter{
				SensorIDs:   []string{id},
				MetricTypes: []domain.MetricType{m},
				Start:       &ts,
				End:         &ts,
			}, stat)
			if err != nil {
				return nil, err
			}
			results = append(results, aggs...)
		}
	}
	return results, nil
}

// targetSensorIDs returns ids verbatim, or every registered sensor when ids is nil.
func (s *MetricService) targetSensorIDs(ctx context.Context, ids []string) ([]string, error) {
	if ids != nil {
		return ids, nil
	}
	// Full scan; acceptable while the sensor population is small.
	sensors, err := s.sensors.ListSensors(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(sensors))
	for _, st := range sensors {
		out = append(out, st.SensorID)
	}
	return out, nil
}
