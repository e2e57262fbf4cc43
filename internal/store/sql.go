package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chadmayfield/sensord/internal/domain"
)

// sqliteTimeLayout is fixed width so that stored timestamps order lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// dialect captures the differences between the SQL backends.
type dialect struct {
	name string // "sqlite" or "postgres"
}

func (d dialect) rebind(query string) string {
	if d.name == "postgres" {
		return replacePlaceholders(query)
	}
	return query
}

// encodeTime converts t to the value stored in a timestamp column.
func (d dialect) encodeTime(t time.Time) any {
	if d.name == "sqlite" {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// sqlStore implements Store on top of database/sql. SQLiteStore and
// PostgresStore embed it and only differ in connection setup and dialect.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

// DB returns the underlying database connection for migration commands.
func (s *sqlStore) DB() *sql.DB {
	return s.db
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return domain.NewStorageError("pinging database", s.db.PingContext(ctx))
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) AddSensor(ctx context.Context, sensor *domain.Sensor) (*domain.Sensor, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO sensors (sensor_id, sensor_type, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(sensor_id) DO NOTHING`),
		sensor.SensorID, sensor.SensorType, s.dialect.encodeTime(sensor.CreatedAt))
	if err != nil {
		return nil, domain.NewStorageError("saving sensor", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, domain.NewStorageError("saving sensor", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("sensor %q: %w", sensor.SensorID, domain.ErrDuplicateSensor)
	}
	out := *sensor
	return &out, nil
}

func (s *sqlStore) SensorExists(ctx context.Context, sensorID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT EXISTS(SELECT 1 FROM sensors WHERE sensor_id = ?)`), sensorID).Scan(&exists)
	if err != nil {
		return false, domain.NewStorageError("checking sensor", err)
	}
	return exists, nil
}

func (s *sqlStore) GetSensor(ctx context.Context, sensorID string) (*domain.Sensor, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT sensor_id, sensor_type, created_at
		FROM sensors WHERE sensor_id = ?`), sensorID)

	st, err := scanSensor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("getting sensor", err)
	}
	return st, nil
}

func (s *sqlStore) ListSensors(ctx context.Context) ([]domain.Sensor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sensor_id, sensor_type, created_at
		FROM sensors ORDER BY sensor_id`)
	if err != nil {
		return nil, domain.NewStorageError("listing sensors", err)
	}
	defer rows.Close() //nolint:errcheck

	var sensors []domain.Sensor
	for rows.Next() {
		st, err := scanSensor(rows)
		if err != nil {
			return nil, domain.NewStorageError("scanning sensor", err)
		}
		sensors = append(sensors, *st)
	}
	return sensors, domain.NewStorageError("listing sensors", rows.Err())
}

func (s *sqlStore) AddMetric(ctx context.Context, metric *domain.Metric) (*domain.Metric, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO metrics (sensor_id, metric_type, timestamp, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sensor_id, metric_type, timestamp) DO NOTHING`),
		metric.SensorID, string(metric.MetricType), s.dialect.encodeTime(metric.Timestamp), metric.Value)
	if err != nil {
		return nil, domain.NewStorageError("saving metric", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, domain.NewStorageError("saving metric", err)
	}
	if n > 0 {
		out := *metric
		return &out, nil
	}

	// The key already exists; the first write stays authoritative.
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT sensor_id, metric_type, timestamp, value
		FROM metrics
		WHERE sensor_id = ? AND metric_type = ? AND timestamp = ?`),
		metric.SensorID, string(metric.MetricType), s.dialect.encodeTime(metric.Timestamp))
	existing, err := scanMetric(row)
	if errors.Is(err, sql.ErrNoRows) {
		out := *metric
		return &out, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("loading existing metric", err)
	}
	return existing, nil
}

func (s *sqlStore) GetRawMetrics(ctx context.Context, filter domain.MetricFilter) ([]domain.Metric, error) {
	if filter.Empty() {
		return nil, nil
	}
	where, args := s.whereClause(&filter)
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT sensor_id, metric_type, timestamp, value
		FROM metrics`+where+`
		ORDER BY sensor_id, metric_type, timestamp`), args...)
	if err != nil {
		return nil, domain.NewStorageError("querying metrics", err)
	}
	defer rows.Close() //nolint:errcheck

	var result []domain.Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, domain.NewStorageError("scanning metric", err)
		}
		result = append(result, *m)
	}
	return result, domain.NewStorageError("querying metrics", rows.Err())
}

func (s *sqlStore) QueryAggregated(ctx context.Context, filter domain.MetricFilter, statistic domain.StatisticType) ([]domain.AggregatedMetricResult, error) {
	fn, err := statistic.SQLFunc()
	if err != nil {
		return nil, err
	}
	if filter.Empty() {
		return nil, nil
	}

	where, args := s.whereClause(&filter)
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(fmt.Sprintf(`
		SELECT sensor_id, metric_type, %s(value)
		FROM metrics%s
		GROUP BY sensor_id, metric_type
		ORDER BY sensor_id, metric_type`, fn, where)), args...)
	if err != nil {
		return nil, domain.NewStorageError("aggregating metrics", err)
	}
	defer rows.Close() //nolint:errcheck

	var result []domain.AggregatedMetricResult
	for rows.Next() {
		var r domain.AggregatedMetricResult
		var metricType string
		if err := rows.Scan(&r.SensorID, &metricType, &r.Value); err != nil {
			return nil, domain.NewStorageError("scanning aggregate", err)
		}
		r.MetricType = domain.MetricType(metricType)
		r.Statistic = statistic
		result = append(result, r)
	}
	return result, domain.NewStorageError("aggregating metrics", rows.Err())
}

func (s *sqlStore) LatestTimestamps(ctx context.Context, sensorIDs []string, metricTypes []domain.MetricType) (map[domain.SeriesKey]time.Time, error) {
	latest := make(map[domain.SeriesKey]time.Time)
	if len(sensorIDs) == 0 || len(metricTypes) == 0 {
		return latest, nil
	}

	where, args := s.whereClause(&domain.MetricFilter{SensorIDs: sensorIDs, MetricTypes: metricTypes})
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT sensor_id, metric_type, MAX(timestamp)
		FROM metrics`+where+`
		GROUP BY sensor_id, metric_type`), args...)
	if err != nil {
		return nil, domain.NewStorageError("querying latest timestamps", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var sensorID, metricType string
		var tsRaw any
		if err := rows.Scan(&sensorID, &metricType, &tsRaw); err != nil {
			return nil, domain.NewStorageError("scanning latest timestamp", err)
		}
		ts, err := parseTimestamp(tsRaw)
		if err != nil {
			return nil, domain.NewStorageError("parsing latest timestamp", err)
		}
		latest[domain.SeriesKey{SensorID: sensorID, MetricType: domain.MetricType(metricType)}] = ts
	}
	return latest, domain.NewStorageError("querying latest timestamps", rows.Err())
}

// whereClause renders filter as a WHERE clause with ? placeholders.
func (s *sqlStore) whereClause(f *domain.MetricFilter) (string, []any) {
	var conds []string
	var args []any

	if f.SensorIDs != nil {
		conds = append(conds, "sensor_id IN ("+placeholders(len(f.SensorIDs))+")")
		for _, id := range f.SensorIDs {
			args = append(args, id)
		}
	}
	if f.MetricTypes != nil {
		conds = append(conds, "metric_type IN ("+placeholders(len(f.MetricTypes))+")")
		for _, mt := range f.MetricTypes {
			args = append(args, string(mt))
		}
	}
	if f.Start != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, s.dialect.encodeTime(*f.Start))
	}
	if f.End != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, s.dialect.encodeTime(*f.End))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// --- Shared helpers ---

type scanner interface {
	Scan(dest ...any) error
}

// parseTimestamp handles both time.Time and string timestamp values.
func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case []byte:
		return parseTimestamp(string(t))
	case string:
		for _, layout := range []string{
			sqliteTimeLayout,
			time.RFC3339Nano,
			"2006-01-02 15:04:05.999999999-07:00",
			"2006-01-02 15:04:05",
		} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", t)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type: %T", v)
	}
}

func scanSensor(row scanner) (*domain.Sensor, error) {
	var st domain.Sensor
	var createdRaw any
	if err := row.Scan(&st.SensorID, &st.SensorType, &createdRaw); err != nil {
		return nil, err
	}
	created, err := parseTimestamp(createdRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	st.CreatedAt = created
	return &st, nil
}

func scanMetric(row scanner) (*domain.Metric, error) {
	var m domain.Metric
	var metricType string
	var tsRaw any
	if err := row.Scan(&m.SensorID, &metricType, &tsRaw, &m.Value); err != nil {
		return nil, err
	}
	ts, err := parseTimestamp(tsRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}
	m.MetricType = domain.MetricType(metricType)
	m.Timestamp = ts
	return &m, nil
}

// replacePlaceholders converts ? to $1, $2, $3 etc for postgres.
func replacePlaceholders(query string) string {
	result := make([]byte, 0, len(query))
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, fmt.Sprintf("$%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
