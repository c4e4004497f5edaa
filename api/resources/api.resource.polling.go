package resources

import (
	"encoding/json"
	"net/http"

	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/hubservice"
	"github.com/bakerysensors/hub/internal/scheduler"
	nuts "github.com/vaudience/go-nuts"
)

// PollingHandlers expose the polling scheduler
type PollingHandlers struct {
	hubservice *hubservice.HubService
}

// TriggerResponse acknowledges a manual job run. Triggered is false with
// AlreadyRunning set when a run of the job was in progress, in which case
// no new run is started.
type TriggerResponse struct {
	Job            string `json:"job"`
	Triggered      bool   `json:"triggered"`
	AlreadyRunning bool   `json:"already_running,omitempty"`
}

// IntervalRequest changes the polling interval.
type IntervalRequest struct {
	Minutes int `json:"minutes"`
}

// IntervalResponse reports the polling interval now in effect.
type IntervalResponse struct {
	PollingIntervalMinutes int  `json:"polling_interval_minutes"`
	AppliedImmediately     bool `json:"applied_immediately"`
}

// @Summary Polling status
// @Description Scheduler state, run counters and next run times
// @Tags polling
// @Produce json
// @Success 200 {object} scheduler.Status
// @Failure 401 {object} errors.APIError
// @Router /polling/status [get]
// @Security BearerAuth
func (h *PollingHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.hubservice.Polling.Status())
}

// @Summary Poll now
// @Description Run the SensorPush poll immediately in the background
// @Tags polling
// @Produce json
// @Success 200 {object} TriggerResponse "A run is already in progress"
// @Success 202 {object} TriggerResponse
// @Failure 401 {object} errors.APIError
// @Failure 503 {object} errors.APIError
// @Router /polling/poll [post]
// @Security BearerAuth
func (h *PollingHandlers) TriggerPoll(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, scheduler.JobPoll, h.hubservice.Polling.TriggerImmediatePoll)
}

// @Summary Purge now
// @Description Run the retention purge immediately in the background
// @Tags polling
// @Produce json
// @Success 200 {object} TriggerResponse "A run is already in progress"
// @Success 202 {object} TriggerResponse
// @Failure 401 {object} errors.APIError
// @Failure 503 {object} errors.APIError
// @Router /polling/purge [post]
// @Security BearerAuth
func (h *PollingHandlers) TriggerPurge(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, scheduler.JobPurge, h.hubservice.Polling.TriggerImmediatePurge)
}

func (h *PollingHandlers) trigger(w http.ResponseWriter, job string, run func() bool) {
	requestID := nuts.NID("req", 12)
	if !h.hubservice.Polling.IsRunning() {
		respondWithError(w, errors.NewUnavailableError("polling service is not running", nil).WithRequestID(requestID))
		return
	}
	if h.hubservice.Polling.JobInProgress(job) {
		respondWithJSON(w, http.StatusOK, TriggerResponse{Job: job, AlreadyRunning: true})
		return
	}
	if !run() {
		respondWithError(w, errors.NewUnavailableError("polling service is not running", nil).WithRequestID(requestID))
		return
	}
	respondWithJSON(w, http.StatusAccepted, TriggerResponse{Job: job, Triggered: true})
}

// @Summary Change the polling interval
// @Description Persist a new interval in minutes and reschedule polling if it is running
// @Tags polling
// @Accept json
// @Produce json
// @Param interval body IntervalRequest true "New interval"
// @Success 200 {object} IntervalResponse
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Router /polling/interval [put]
// @Security BearerAuth
func (h *PollingHandlers) UpdateInterval(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req IntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	if err := h.hubservice.Polling.UpdatePollingInterval(r.Context(), req.Minutes); err != nil {
		respondWithError(w, toAPIError(err, "failed to update polling interval").WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, IntervalResponse{
		PollingIntervalMinutes: req.Minutes,
		AppliedImmediately:     h.hubservice.Polling.IsRunning(),
	})
}
