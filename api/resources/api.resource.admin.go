package resources

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bakerysensors/hub/api/middleware"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/hubservice"
	"github.com/bakerysensors/hub/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

const (
	defaultErrorLimit = 50
	maxErrorLimit     = 500
)

// AdminHandlers expose settings, the error log and service health
type AdminHandlers struct {
	hubservice *hubservice.HubService
}

// AuthHandlers issue manager sessions
type AuthHandlers struct {
	hubservice *hubservice.HubService
	sessions   *middleware.SessionMiddleware
	limiter    *middleware.LoginLimiter
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status         string    `json:"status"`
	Version        string    `json:"version"`
	Database       string    `json:"database"`
	PollingRunning bool      `json:"polling_running"`
	Time           time.Time `json:"time"`
}

// LoginRequest carries the manager PIN.
type LoginRequest struct {
	PIN string `json:"pin"`
}

// LoginResponse carries a session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// @Summary Health check
// @Description Database reachability and polling state
// @Tags admin
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *AdminHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:         "ok",
		Version:        nuts.GetVersion(),
		Database:       "ok",
		PollingRunning: h.hubservice.Polling.IsRunning(),
		Time:           time.Now().UTC(),
	}
	code := http.StatusOK
	if err := h.hubservice.DB.Ping(ctx); err != nil {
		nuts.L.Warnf("[API] Health check database ping failed: %v", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		code = http.StatusServiceUnavailable
	}

	respondWithJSON(w, code, resp)
}

// @Summary List settings
// @Description Stored operator settings
// @Tags admin
// @Produce json
// @Success 200 {array} models.Setting
// @Failure 401 {object} errors.APIError
// @Router /settings [get]
// @Security BearerAuth
func (h *AdminHandlers) ListSettings(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	settings, err := h.hubservice.Settings.All(r.Context())
	if err != nil {
		respondWithError(w, toAPIError(err, "failed to list settings").WithRequestID(requestID))
		return
	}
	if settings == nil {
		settings = []models.Setting{}
	}

	respondWithJSON(w, http.StatusOK, settings)
}

// @Summary Recent errors
// @Description Newest recorded errors with their correlation IDs
// @Tags admin
// @Produce json
// @Param limit query int false "Maximum number of records"
// @Success 200 {array} models.ErrorRecord
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Router /errors [get]
// @Security BearerAuth
func (h *AdminHandlers) ListErrors(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	limit := defaultErrorLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondWithError(w, errors.NewValidationError("limit must be a positive integer", err).WithRequestID(requestID))
			return
		}
		limit = min(n, maxErrorLimit)
	}

	records, err := h.hubservice.Monitoring.RecentErrors(r.Context(), limit)
	if err != nil {
		respondWithError(w, toAPIError(err, "failed to list errors").WithRequestID(requestID))
		return
	}
	if records == nil {
		records = []models.ErrorRecord{}
	}

	respondWithJSON(w, http.StatusOK, records)
}

// @Summary Manager login
// @Description Exchange the manager PIN for a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param login body LoginRequest true "Manager PIN"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Failure 429 {object} errors.APIError
// @Router /auth/login [post]
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	client := middleware.ClientKey(r)

	if ok, until := h.limiter.Allowed(client); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(until).Seconds())+1))
		respondWithError(w, errors.NewRateLimitError("too many failed attempts, try again later", nil).WithRequestID(requestID))
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PIN == "" {
		respondWithError(w, errors.NewValidationError("pin is required", err).WithRequestID(requestID))
		return
	}

	ok, err := h.hubservice.Settings.VerifyManagerPin(r.Context(), req.PIN)
	if err != nil {
		respondWithError(w, toAPIError(err, "failed to verify PIN").WithRequestID(requestID))
		return
	}
	if !ok {
		left := h.limiter.Failure(client)
		respondWithError(w, errors.NewAuthError("invalid PIN", nil).
			WithDetails(map[string]int{"attempts_remaining": left}).
			WithRequestID(requestID))
		return
	}
	h.limiter.Success(client)

	token, expires, err := h.sessions.IssueToken(middleware.RoleManager)
	if err != nil {
		respondWithError(w, errors.NewInternalError("failed to issue session", err).WithRequestID(requestID))
		return
	}
	nuts.L.Infof("[API] Manager session issued for %s", client)

	respondWithJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires.UTC()})
}
