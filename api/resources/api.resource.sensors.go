package resources

import (
	"encoding/json"
	"net/http"

	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/hubservice"
	"github.com/bakerysensors/hub/internal/models"
	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"
)

const (
	defaultReadingLimit = 1000
	maxReadingLimit     = 10000
)

// SensorHandlers encapsulates the sensor-related HTTP handlers
type SensorHandlers struct {
	hubservice *hubservice.HubService
}

// @Summary List sensors
// @Description List all known sensors, optionally filtered
// @Tags sensors
// @Produce json
// @Param active query bool false "Only active or inactive sensors"
// @Param category query string false "Sensor category"
// @Success 200 {array} models.Sensor
// @Failure 400 {object} errors.APIError
// @Router /sensors [get]
func (h *SensorHandlers) ListSensors(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var filters models.SensorFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}
	if filters.Category != nil && !filters.Category.Valid() {
		respondWithError(w, errors.NewValidationError("unknown sensor category", nil).WithRequestID(requestID))
		return
	}

	sensors, err := h.hubservice.Sensors.List(r.Context(), filters)
	if err != nil {
		respondWithError(w, toAPIError(err, "failed to list sensors").WithRequestID(requestID))
		return
	}
	if sensors == nil {
		sensors = []*models.Sensor{}
	}

	respondWithJSON(w, http.StatusOK, sensors)
}

// @Summary Get a sensor
// @Description Get a sensor with its latest reading and history summary
// @Tags sensors
// @Produce json
// @Param id path string true "Sensor ID"
// @Success 200 {object} hubservice.SensorOverview
// @Failure 404 {object} errors.APIError
// @Router /sensors/{id} [get]
func (h *SensorHandlers) GetSensor(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	overview, err := h.hubservice.SensorOverview(r.Context(), id)
	if err != nil {
		respondWithError(w, toAPIError(err, "failed to get sensor").WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, overview)
}

// @Summary Update sensor settings
// @Description Rename a sensor, toggle it or change its thresholds
// @Tags sensors
// @Accept json
// @Produce json
// @Param id path string true "Sensor ID"
// @Param sensor body hubservice.SensorUpdate true "Fields to change"
// @Success 200 {object} models.Sensor
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /sensors/{id} [put]
// @Security BearerAuth
func (h *SensorHandlers) UpdateSensor(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	var upd hubservice.SensorUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	sensor, err := h.hubservice.UpdateSensor(r.Context(), id, upd)
	if err != nil {
		respondWithError(w, toAPIError(err, "failed to update sensor").WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, sensor)
}

// @Summary Get sensor readings
// @Description Get readings for a sensor, newest first, within an optional time range
// @Tags sensors
// @Produce json
// @Param id path string true "Sensor ID"
// @Param start query string false "Start time (RFC3339 or YYYY-MM-DD)"
// @Param end query string false "End time (RFC3339 or YYYY-MM-DD)"
// @Param limit query int false "Maximum number of readings"
// @Success 200 {array} models.SensorReading
// @Failure 400 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /sensors/{id}/readings [get]
func (h *SensorHandlers) GetSensorReadings(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	var filters models.ReadingFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}
	filters.SensorID = id
	if !filters.Start.IsZero() && !filters.End.IsZero() && filters.Start.After(filters.End) {
		respondWithError(w, errors.NewValidationError("start must not be after end", nil).WithRequestID(requestID))
		return
	}
	switch {
	case filters.Limit <= 0:
		filters.Limit = defaultReadingLimit
	case filters.Limit > maxReadingLimit:
		filters.Limit = maxReadingLimit
	}

	if _, err := h.hubservice.Sensors.Get(r.Context(), id); err != nil {
		respondWithError(w, toAPIError(err, "failed to get sensor").WithRequestID(requestID))
		return
	}
	readings, err := h.hubservice.Readings.List(r.Context(), filters)
	if err != nil {
		respondWithError(w, toAPIError(err, "failed to get sensor readings").WithRequestID(requestID))
		return
	}
	if readings == nil {
		readings = []models.SensorReading{}
	}

	respondWithJSON(w, http.StatusOK, readings)
}

// @Summary Get the latest reading
// @Description Get the newest reading of a sensor with its threshold check
// @Tags sensors
// @Produce json
// @Param id path string true "Sensor ID"
// @Success 200 {object} models.ReadingWithBreach
// @Failure 404 {object} errors.APIError
// @Router /sensors/{id}/latest [get]
func (h *SensorHandlers) GetLatestReading(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	latest, err := h.hubservice.LatestReading(r.Context(), id)
	if err != nil {
		respondWithError(w, toAPIError(err, "failed to get latest reading").WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, latest)
}
