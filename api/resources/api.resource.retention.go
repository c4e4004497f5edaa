package resources

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/hubservice"
	"github.com/bakerysensors/hub/internal/retention"
	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"
)

// RetentionHandlers expose retention statistics and operator deletes
type RetentionHandlers struct {
	hubservice *hubservice.HubService
}

// DeleteReadingsRequest selects readings to delete. With SensorID set the
// dates are optional; otherwise both dates are required and SensorIDs
// optionally narrows the range to some sensors.
type DeleteReadingsRequest struct {
	SensorID  string     `json:"sensor_id,omitempty"`
	SensorIDs []string   `json:"sensor_ids,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// @Summary Retention statistics
// @Description Totals, date range and purge-eligible count of stored readings
// @Tags retention
// @Produce json
// @Success 200 {object} retention.Stats
// @Failure 401 {object} errors.APIError
// @Router /retention/stats [get]
// @Security BearerAuth
func (h *RetentionHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	stats, err := h.hubservice.Retention.Stats(r.Context(), h.hubservice.Config.Retention.Months)
	if err != nil {
		respondWithError(w, toAPIError(err, "failed to read retention statistics").WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// @Summary Sensor data summary
// @Description Stored reading count and date span of one sensor
// @Tags retention
// @Produce json
// @Param id path string true "Sensor ID"
// @Success 200 {object} models.SensorDataSummary
// @Failure 401 {object} errors.APIError
// @Router /retention/sensors/{id}/summary [get]
// @Security BearerAuth
func (h *RetentionHandlers) GetSensorSummary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	summary, err := h.hubservice.Retention.SensorSummary(r.Context(), id)
	if err != nil {
		respondWithError(w, toAPIError(err, "failed to summarize sensor data").WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

// @Summary Delete readings
// @Description Delete readings of one sensor or within a date range
// @Tags retention
// @Accept json
// @Produce json
// @Param request body DeleteReadingsRequest true "Readings to delete"
// @Success 200 {object} retention.DeleteResult
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Failure 500 {object} retention.DeleteResult
// @Router /retention/readings [delete]
// @Security BearerAuth
func (h *RetentionHandlers) DeleteReadings(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req DeleteReadingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	if req.StartDate != nil && req.EndDate != nil && req.StartDate.After(*req.EndDate) {
		respondWithError(w, errors.NewValidationError("start_date must not be after end_date", nil).WithRequestID(requestID))
		return
	}

	var res retention.DeleteResult
	switch {
	case req.SensorID != "":
		res = h.hubservice.Retention.DeleteBySensor(r.Context(), req.SensorID, utcPtr(req.StartDate), utcPtr(req.EndDate))
	case req.StartDate != nil && req.EndDate != nil:
		res = h.hubservice.Retention.DeleteByDateRange(r.Context(), req.StartDate.UTC(), req.EndDate.UTC(), req.SensorIDs)
	default:
		respondWithError(w, errors.NewValidationError("sensor_id or both start_date and end_date are required", nil).WithRequestID(requestID))
		return
	}

	if !res.Success {
		respondWithJSON(w, http.StatusInternalServerError, res)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
