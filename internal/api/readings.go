package api

import (
	"net/http"
	"time"

	"github.com/chadmayfield/sensord/internal/domain"
	"github.com/chadmayfield/sensord/internal/service"
)

type recordMetricRequest struct {
	Timestamp  string   `json:"timestamp"`
	MetricType string   `json:"metric_type"`
	Value      *float64 `json:"value"`
}

// RecordMetric handles POST /api/v1/sensors/{sensor_id}/metrics
func (h *Handlers) RecordMetric(w http.ResponseWriter, r *http.Request) {
	sensorID := r.PathValue("sensor_id")

	var req recordMetricRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Timestamp == "" {
		writeError(w, http.StatusBadRequest, "missing 'timestamp'")
		return
	}
	ts, err := parseTime(req.Timestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'timestamp' (RFC3339, YYYY-MM-DD or Unix epoch)")
		return
	}
	mt, err := domain.ParseMetricType(req.MetricType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "missing 'value'")
		return
	}

	res, err := h.Metrics.Record(r.Context(), sensorID, service.MetricInput{
		MetricType: mt,
		Timestamp:  ts,
		Value:      *req.Value,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "failed to record metric")
		return
	}
	h.stats.recorded.WithLabelValues(string(mt)).Inc()
	writeJSON(w, http.StatusCreated, res)
}

// QueryMetrics handles GET /api/v1/metrics/query
func (h *Handlers) QueryMetrics(w http.ResponseWriter, r *http.Request) {
	q := service.MetricQuery{SensorIDs: parseList(r, "sensor_ids")}

	for _, s := range parseList(r, "metrics") {
		mt, err := domain.ParseMetricType(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q.Metrics = append(q.Metrics, mt)
	}

	if s := r.URL.Query().Get("statistic"); s != "" {
		stat, err := domain.ParseStatistic(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q.Statistic = stat
	}

	var ok bool
	if q.StartDate, ok = h.queryTime(w, r, "start_date"); !ok {
		return
	}
	if q.EndDate, ok = h.queryTime(w, r, "end_date"); !ok {
		return
	}

	resp, err := h.Metrics.Query(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to query metrics")
		return
	}

	mode := "range"
	if resp.Query.Latest() {
		mode = "latest"
	}
	h.stats.queries.WithLabelValues(mode).Inc()
	writeJSON(w, http.StatusOK, resp)
}

// queryTime parses an optional time parameter, writing a 400 on failure.
func (h *Handlers) queryTime(w http.ResponseWriter, r *http.Request, key string) (*time.Time, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, true
	}
	t, err := parseTime(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid '"+key+"' parameter (RFC3339, YYYY-MM-DD or Unix epoch)")
		return nil, false
	}
	return &t, true
}
