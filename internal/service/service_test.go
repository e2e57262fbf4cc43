package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/chadmayfield/sensord/internal/domain"
	"github.com/chadmayfield/sensord/internal/store"
)

var testBase = time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func newServices(t *testing.T) (*SensorService, *MetricService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewSensorService(st, discardLogger()), NewMetricService(st, st, discardLogger()), st
}

// countingMetricStore records calls to AddMetric.
type countingMetricStore struct {
	*store.MemoryStore
	adds int
}

func (c *countingMetricStore) AddMetric(ctx context.Context, m *domain.Metric) (*domain.Metric, error) {
	c.adds++
	return c.MemoryStore.AddMetric(ctx, m)
}

func TestSensorService_Create(t *testing.T) {
	sensors, _, _ := newServices(t)
	sensors.now = func() time.Time { return testBase }
	ctx := context.Background()

	got, err := sensors.Create(ctx, "thermo", "s1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.SensorID != "s1" || got.SensorType != "thermo" || !got.CreatedAt.Equal(testBase) {
		t.Errorf("Create = %+v", got)
	}

	if _, err := sensors.Create(ctx, "thermo", "s1"); !errors.Is(err, domain.ErrDuplicateSensor) {
		t.Errorf("duplicate Create error = %v, want ErrDuplicateSensor", err)
	}
}

func TestSensorService_CreateGeneratesID(t *testing.T) {
	sensors, _, _ := newServices(t)
	sensors.newID = func() string { return "generated-id" }

	got, err := sensors.Create(context.Background(), "hygro", "")
	if err != nil {
		t.Fatal(err)
	}
	if got.SensorID != "generated-id" {
		t.Errorf("SensorID = %q, want generated-id", got.SensorID)
	}
}

func TestSensorService_CreateDefaultIDIsUUID(t *testing.T) {
	sensors, _, _ := newServices(t)
	got, err := sensors.Create(context.Background(), "hygro", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.SensorID) != 36 {
		t.Errorf("SensorID = %q, want a UUID", got.SensorID)
	}
}

func TestSensorService_CreateValidation(t *testing.T) {
	sensors, _, _ := newServices(t)
	tests := []struct {
		name, sensorType, id string
	}{
		{"empty type", "", "s1"},
		{"bad id chars", "thermo", "bad id!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := sensors.Create(context.Background(), tt.sensorType, tt.id); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSensorService_GetExistsList(t *testing.T) {
	sensors, _, _ := newServices(t)
	ctx := context.Background()
	for _, id := range []string{"b", "a"} {
		if _, err := sensors.Create(ctx, "thermo", id); err != nil {
			t.Fatal(err)
		}
	}

	ok, err := sensors.Exists(ctx, "a")
	if err != nil || !ok {
		t.Errorf("Exists(a) = %v, %v", ok, err)
	}
	got, err := sensors.Get(ctx, "missing")
	if err != nil || got != nil {
		t.Errorf("Get(missing) = %v, %v", got, err)
	}
	list, err := sensors.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("List returned %d sensors, want 2", len(list))
	}
}

func TestMetricService_Record(t *testing.T) {
	sensors, metrics, st := newServices(t)
	ctx := context.Background()
	if _, err := sensors.Create(ctx, "thermo", "s1"); err != nil {
		t.Fatal(err)
	}

	res, err := metrics.Record(ctx, "s1", MetricInput{MetricType: domain.Temperature, Timestamp: testBase, Value: 21.5})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if res.SensorID != "s1" || res.Status != StatusRecorded || !res.Timestamp.Equal(testBase) {
		t.Errorf("Record = %+v", res)
	}

	// Duplicate write reports success and keeps the first value.
	if _, err := metrics.Record(ctx, "s1", MetricInput{MetricType: domain.Temperature, Timestamp: testBase, Value: 99}); err != nil {
		t.Fatalf("duplicate Record: %v", err)
	}
	rows, err := st.GetRawMetrics(ctx, domain.MetricFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Value != 21.5 {
		t.Errorf("rows = %+v, want single 21.5 reading", rows)
	}
}

func TestMetricService_RecordUnknownSensor(t *testing.T) {
	st := store.NewMemoryStore()
	counting := &countingMetricStore{MemoryStore: st}
	metrics := NewMetricService(counting, st, discardLogger())

	_, err := metrics.Record(context.Background(), "ghost", MetricInput{MetricType: domain.Temperature, Timestamp: testBase, Value: 1})
	if !errors.Is(err, domain.ErrSensorNotFound) {
		t.Errorf("error = %v, want ErrSensorNotFound", err)
	}
	if counting.adds != 0 {
		t.Errorf("AddMetric called %d times, want 0", counting.adds)
	}
}

func TestMetricService_RecordValidation(t *testing.T) {
	sensors, metrics, _ := newServices(t)
	ctx := context.Background()
	if _, err := sensors.Create(ctx, "thermo", "s1"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   MetricInput
	}{
		{"above max", MetricInput{MetricType: domain.Temperature, Timestamp: testBase, Value: 1000.01}},
		{"below min", MetricInput{MetricType: domain.Temperature, Timestamp: testBase, Value: -1000.01}},
		{"NaN", MetricInput{MetricType: domain.Temperature, Timestamp: testBase, Value: math.NaN()}},
		{"unknown type", MetricInput{MetricType: "pressure", Timestamp: testBase, Value: 1}},
		{"zero timestamp", MetricInput{MetricType: domain.Temperature, Value: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := metrics.Record(ctx, "s1", tt.in); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}

	for _, v := range []float64{domain.MinMetricValue, domain.MaxMetricValue} {
		if _, err := metrics.Record(ctx, "s1", MetricInput{MetricType: domain.Humidity, Timestamp: testBase.Add(time.Duration(v) * time.Second), Value: v}); err != nil {
			t.Errorf("boundary value %v rejected: %v", v, err)
		}
	}
}

func TestMetricQuery_Complete(t *testing.T) {
	jan1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	feb1 := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	dec31 := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	nov30 := time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name               string
		start, end         *time.Time
		wantStart, wantEnd *time.Time
	}{
		{"start only", &jan1, nil, &jan1, &feb1},
		{"end only", nil, &dec31, &nov30, &dec31},
		{"both", &jan1, &feb1, &jan1, &feb1},
		{"neither", nil, nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := MetricQuery{StartDate: tt.start, EndDate: tt.end}
			got := q.Complete()
			if !timePtrEqual(got.StartDate, tt.wantStart) || !timePtrEqual(got.EndDate, tt.wantEnd) {
				t.Errorf("Complete = [%v, %v], want [%v, %v]", got.StartDate, got.EndDate, tt.wantStart, tt.wantEnd)
			}
		})
	}

	// The receiver is not modified.
	q := MetricQuery{StartDate: &jan1}
	_ = q.Complete()
	if q.EndDate != nil {
		t.Error("Complete mutated the caller's query")
	}
}

func TestMetricQuery_CompleteKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	start := time.Date(2023, 3, 1, 0, 0, 0, 0, loc)
	got := MetricQuery{StartDate: &start}.Complete()
	want := time.Date(2023, 4, 1, 0, 0, 0, 0, loc)
	if !got.EndDate.Equal(want) || got.EndDate.Location() != loc {
		t.Errorf("EndDate = %v, want %v", got.EndDate, want)
	}
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func TestMetricQuery_Validate(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	metricsOK := []domain.MetricType{domain.Temperature}

	tests := []struct {
		name    string
		q       MetricQuery
		wantErr bool
	}{
		{"valid latest", MetricQuery{Metrics: metricsOK, Statistic: domain.Avg}, false},
		{"no metrics", MetricQuery{Statistic: domain.Avg}, true},
		{"unknown metric", MetricQuery{Metrics: []domain.MetricType{"pressure"}, Statistic: domain.Avg}, true},
		{"no statistic", MetricQuery{Metrics: metricsOK}, true},
		{"unknown statistic", MetricQuery{Metrics: metricsOK, Statistic: "median"}, true},
		{"one day", MetricQuery{Metrics: metricsOK, Statistic: domain.Min, StartDate: &start, EndDate: ptr(start.AddDate(0, 0, 1))}, false},
		{"31 days", MetricQuery{Metrics: metricsOK, Statistic: domain.Min, StartDate: &start, EndDate: ptr(start.AddDate(0, 0, 31))}, false},
		{"31 days and change", MetricQuery{Metrics: metricsOK, Statistic: domain.Min, StartDate: &start, EndDate: ptr(start.AddDate(0, 0, 31).Add(23 * time.Hour))}, false},
		{"32 days", MetricQuery{Metrics: metricsOK, Statistic: domain.Min, StartDate: &start, EndDate: ptr(start.AddDate(0, 0, 32))}, true},
		{"under a day", MetricQuery{Metrics: metricsOK, Statistic: domain.Min, StartDate: &start, EndDate: ptr(start.Add(23 * time.Hour))}, true},
		{"equal bounds", MetricQuery{Metrics: metricsOK, Statistic: domain.Min, StartDate: &start, EndDate: &start}, true},
		{"reversed", MetricQuery{Metrics: metricsOK, Statistic: domain.Min, StartDate: ptr(start.AddDate(0, 0, 5)), EndDate: &start}, true},
		{"end in five digit year", MetricQuery{Metrics: metricsOK, Statistic: domain.Min, StartDate: ptr(time.Date(9999, 12, 20, 0, 0, 0, 0, time.UTC)), EndDate: ptr(time.Date(10000, 1, 2, 0, 0, 0, 0, time.UTC))}, true},
		{"start only in five digit year", MetricQuery{Metrics: metricsOK, Statistic: domain.Min, StartDate: ptr(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC))}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Validate() = %v, want ErrValidation", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

// seedQueryData registers s1 and s2 and records readings on 2023-01-01,
// 2023-01-02 and 2023-01-03 at noon.
func seedQueryData(t *testing.T) (*MetricService, *store.MemoryStore) {
	t.Helper()
	sensors, metrics, st := newServices(t)
	ctx := context.Background()
	for _, id := range []string{"s1", "s2"} {
		if _, err := sensors.Create(ctx, "thermo", id); err != nil {
			t.Fatal(err)
		}
	}
	readings := []struct {
		id    string
		mt    domain.MetricType
		day   int
		value float64
	}{
		{"s1", domain.Temperature, 0, 10},
		{"s1", domain.Temperature, 1, 20},
		{"s1", domain.Temperature, 2, 30},
		{"s1", domain.Humidity, 0, 50},
		{"s2", domain.Temperature, 0, -5},
		{"s2", domain.Temperature, 2, 15},
	}
	for _, r := range readings {
		in := MetricInput{MetricType: r.mt, Timestamp: testBase.AddDate(0, 0, r.day), Value: r.value}
		if _, err := metrics.Record(ctx, r.id, in); err != nil {
			t.Fatal(err)
		}
	}
	return metrics, st
}

func resultValues(resp *QueryResponse) map[string]float64 {
	out := make(map[string]float64, len(resp.Results))
	for _, r := range resp.Results {
		out[r.SensorID+"/"+string(r.Metric)] = r.Stat.Value
	}
	return out
}

func TestMetricService_QueryRange(t *testing.T) {
	metrics, _ := seedQueryData(t)
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		stat domain.StatisticType
		want map[string]float64
	}{
		{domain.Min, map[string]float64{"s1/temperature": 10, "s2/temperature": -5}},
		{domain.Max, map[string]float64{"s1/temperature": 30, "s2/temperature": 15}},
		{domain.Avg, map[string]float64{"s1/temperature": 20, "s2/temperature": 5}},
		{domain.Sum, map[string]float64{"s1/temperature": 60, "s2/temperature": 10}},
	}
	for _, tt := range tests {
		t.Run(string(tt.stat), func(t *testing.T) {
			resp, err := metrics.Query(context.Background(), MetricQuery{
				Metrics:   []domain.MetricType{domain.Temperature},
				Statistic: tt.stat,
				StartDate: &start,
				EndDate:   &end,
			})
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			got := resultValues(resp)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if math.Abs(got[k]-v) > 1e-9 {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
			for _, r := range resp.Results {
				if r.Stat.StatisticType != tt.stat {
					t.Errorf("result statistic = %q, want %q", r.Stat.StatisticType, tt.stat)
				}
			}
		})
	}
}

func TestMetricService_QueryLatest(t *testing.T) {
	metrics, _ := seedQueryData(t)
	resp, err := metrics.Query(context.Background(), MetricQuery{
		Metrics:   []domain.MetricType{domain.Temperature, domain.Humidity},
		Statistic: domain.Sum,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	want := map[string]float64{"s1/temperature": 30, "s1/humidity": 50, "s2/temperature": 15}
	got := resultValues(resp)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	if resp.Query.StartDate != nil || resp.Query.EndDate != nil {
		t.Error("latest query should echo no dates")
	}
}

func TestMetricService_QueryCompletesEcho(t *testing.T) {
	metrics, _ := seedQueryData(t)
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	resp, err := metrics.Query(context.Background(), MetricQuery{
		SensorIDs: []string{"s1"},
		Metrics:   []domain.MetricType{domain.Temperature},
		Statistic: domain.Max,
		StartDate: &start,
	})
	if err != nil {
		t.Fatal(err)
	}
	wantEnd := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	if resp.Query.EndDate == nil || !resp.Query.EndDate.Equal(wantEnd) {
		t.Errorf("echoed EndDate = %v, want %v", resp.Query.EndDate, wantEnd)
	}
	if len(resp.Results) != 1 || resp.Results[0].Stat.Value != 30 {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestMetricService_QueryTargets(t *testing.T) {
	metrics, _ := seedQueryData(t)
	ctx := context.Background()
	base := MetricQuery{Metrics: []domain.MetricType{domain.Temperature}, Statistic: domain.Max}

	t.Run("empty list matches nothing", func(t *testing.T) {
		q := base
		q.SensorIDs = []string{}
		resp, err := metrics.Query(ctx, q)
		if err != nil {
			t.Fatal(err)
		}
		if resp.Results == nil || len(resp.Results) != 0 {
			t.Errorf("results = %#v, want empty non-nil slice", resp.Results)
		}
	})

	t.Run("unknown sensor omitted", func(t *testing.T) {
		q := base
		q.SensorIDs = []string{"ghost", "s2"}
		resp, err := metrics.Query(ctx, q)
		if err != nil {
			t.Fatal(err)
		}
		if len(resp.Results) != 1 || resp.Results[0].SensorID != "s2" {
			t.Errorf("results = %+v", resp.Results)
		}
	})

	t.Run("no sensors registered", func(t *testing.T) {
		_, empty, _ := newServices(t)
		resp, err := empty.Query(ctx, base)
		if err != nil {
			t.Fatal(err)
		}
		if len(resp.Results) != 0 {
			t.Errorf("results = %+v", resp.Results)
		}
	})
}

func TestMetricService_QueryNoDataInRange(t *testing.T) {
	metrics, _ := seedQueryData(t)
	start := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 6, 10, 0, 0, 0, 0, time.UTC)
	resp, err := metrics.Query(context.Background(), MetricQuery{
		Metrics:   []domain.MetricType{domain.Temperature},
		Statistic: domain.Avg,
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("results = %+v, want none", resp.Results)
	}
}

func TestMetricService_QueryValidationError(t *testing.T) {
	metrics, _ := seedQueryData(t)
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 40)
	_, err := metrics.Query(context.Background(), MetricQuery{
		Metrics:   []domain.MetricType{domain.Temperature},
		Statistic: domain.Avg,
		StartDate: &start,
		EndDate:   &end,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}
