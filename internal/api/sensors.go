package api

import (
	"net/http"

	"github.com/chadmayfield/sensord/internal/domain"
)

type createSensorRequest struct {
	SensorID   string `json:"sensor_id"`
	SensorType string `json:"sensor_type"`
}

// CreateSensor handles POST /api/v1/sensors
func (h *Handlers) CreateSensor(w http.ResponseWriter, r *http.Request) {
	var req createSensorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensor, err := h.Sensors.Create(r.Context(), req.SensorType, req.SensorID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to create sensor")
		return
	}
	writeJSON(w, http.StatusCreated, sensor)
}

// ListSensors handles GET /api/v1/sensors
func (h *Handlers) ListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := h.Sensors.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list sensors")
		return
	}
	if sensors == nil {
		sensors = []domain.Sensor{}
	}
	writeJSON(w, http.StatusOK, sensors)
}

// GetSensor handles GET /api/v1/sensors/{sensor_id}
func (h *Handlers) GetSensor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sensor_id")
	if err := domain.ValidateSensorID(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid sensor_id")
		return
	}

	sensor, err := h.Sensors.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to get sensor")
		return
	}
	if sensor == nil {
		writeError(w, http.StatusNotFound, "sensor not found")
		return
	}
	writeJSON(w, http.StatusOK, sensor)
}
