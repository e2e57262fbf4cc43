package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chadmayfield/sensord/internal/domain"
	"github.com/chadmayfield/sensord/internal/service"
	"github.com/chadmayfield/sensord/internal/store"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Store         store.Store
	Sensors       *service.SensorService
	Metrics       *service.MetricService
	Logger        *slog.Logger
	StartTime     time.Time
	StorageDriver string
	StoragePath   string
	Version       string

	stats *apiMetrics
}

// apiError is a JSON error response.
type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg, Code: status})
}

// writeServiceError maps domain errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a 500 with msg.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSensorNotFound):
		writeError(w, http.StatusNotFound, "sensor not found")
	case errors.Is(err, domain.ErrDuplicateSensor):
		writeError(w, http.StatusConflict, "sensor already exists")
	default:
		reqID, _ := r.Context().Value(requestIDKey).(string)
		h.Logger.Error(msg, "error", err, "path", r.URL.Path, "request_id", reqID)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	// Try RFC3339 first, then a zoneless timestamp, then YYYY-MM-DD, then Unix epoch.
	// Zoneless inputs are taken as UTC.
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format: %q (expected RFC3339, YYYY-MM-DD, or Unix epoch)", s)
}

// parseList collects a repeatable, comma-separated query parameter. It
// returns nil when the parameter is absent and a non-nil slice otherwise.
func parseList(r *http.Request, key string) []string {
	raw, ok := r.URL.Query()[key]
	if !ok {
		return nil
	}
	out := []string{}
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	type dbHealth struct {
		Driver    string `json:"driver"`
		Status    string `json:"status"`
		SizeBytes int64  `json:"size_bytes,omitempty"`
		Sensors   int    `json:"sensors"`
	}
	type healthResponse struct {
		Status    string   `json:"status"`
		Version   string   `json:"version"`
		Uptime    string   `json:"uptime"`
		Timestamp string   `json:"timestamp"`
		Database  dbHealth `json:"database"`
	}

	resp := healthResponse{
		Status:    "healthy",
		Version:   h.Version,
		Uptime:    formatUptime(time.Since(h.StartTime)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Database:  dbHealth{Driver: h.StorageDriver, Status: "connected"},
	}

	if err := h.Store.Ping(r.Context()); err != nil {
		h.Logger.Warn("health check: store ping failed", "error", err)
		resp.Status = "unhealthy"
		resp.Database.Status = "unreachable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	// Path omitted to avoid exposing filesystem details.
	if h.StorageDriver == "sqlite" && h.StoragePath != "" {
		if info, err := os.Stat(h.StoragePath); err == nil {
			resp.Database.SizeBytes = info.Size()
		}
	}
	if sensors, err := h.Sensors.List(r.Context()); err == nil {
		resp.Database.Sensors = len(sensors)
	}

	writeJSON(w, http.StatusOK, resp)
}
