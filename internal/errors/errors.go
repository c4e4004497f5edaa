// FilePath: internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Error types
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeDatabase    ErrorType = "database"
	ErrorTypeAuth        ErrorType = "authentication"
	ErrorTypeAuthorize   ErrorType = "authorization"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeUnavailable ErrorType = "service_unavailable"

	// Telemetry pipeline error types
	ErrorTypeConfiguration  ErrorType = "configuration"
	ErrorTypeConnection     ErrorType = "connection"
	ErrorTypeTokenExpired   ErrorType = "token_expired"
	ErrorTypeUpstream       ErrorType = "sensorpush_api"
	ErrorTypeData           ErrorType = "data"
	ErrorTypePollingService ErrorType = "polling_service"
	ErrorTypeRetention      ErrorType = "data_retention"
)

// APIError represents a structured API error
type APIError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Details   any       `json:"details,omitempty"`
	// StatusCode is the upstream HTTP status for SensorPush API errors.
	StatusCode int   `json:"-"`
	err        error // Internal error for logging
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the internal cause to errors.Is and errors.As.
func (e *APIError) Unwrap() error {
	return e.err
}

// WithRequestID adds a request ID to the error
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// WithDetails adds additional details to the error
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

func newError(t ErrorType, code int, msg string, err error) *APIError {
	return &APIError{
		Type:    t,
		Message: msg,
		Code:    code,
		err:     err,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string, err error) *APIError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, msg, err)
}

// NewDatabaseError creates a new database error
func NewDatabaseError(msg string, err error) *APIError {
	return newError(ErrorTypeDatabase, http.StatusInternalServerError, msg, err)
}

// NewAuthError creates a new authentication error
func NewAuthError(msg string, err error) *APIError {
	return newError(ErrorTypeAuth, http.StatusUnauthorized, msg, err)
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(msg string, err error) *APIError {
	return newError(ErrorTypeAuthorize, http.StatusForbidden, msg, err)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(msg string, err error) *APIError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, msg, err)
}

// NewRateLimitError creates a new rate limit error
func NewRateLimitError(msg string, err error) *APIError {
	return newError(ErrorTypeRateLimit, http.StatusTooManyRequests, msg, err)
}

// NewInternalError creates a new internal server error
func NewInternalError(msg string, err error) *APIError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, msg, err)
}

// NewUnavailableError creates a new service unavailable error
func NewUnavailableError(msg string, err error) *APIError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable, msg, err)
}

// NewConfigurationError reports missing or invalid configuration.
func NewConfigurationError(msg string, err error) *APIError {
	return newError(ErrorTypeConfiguration, http.StatusInternalServerError, msg, err)
}

// NewConnectionError reports a network failure or timeout talking to SensorPush.
func NewConnectionError(msg string, err error) *APIError {
	return newError(ErrorTypeConnection, http.StatusBadGateway, msg, err)
}

// NewTokenExpiredError reports a token that was rejected even after a fresh login.
func NewTokenExpiredError(msg string, err error) *APIError {
	return newError(ErrorTypeTokenExpired, http.StatusBadGateway, msg, err)
}

// NewUpstreamError reports a non-success response from the SensorPush API.
func NewUpstreamError(status int, msg string, err error) *APIError {
	e := newError(ErrorTypeUpstream, http.StatusBadGateway, msg, err)
	e.StatusCode = status
	return e
}

// NewDataError reports a malformed record in an upstream payload.
func NewDataError(msg string, err error) *APIError {
	return newError(ErrorTypeData, http.StatusUnprocessableEntity, msg, err)
}

// NewPollingServiceError reports that the polling scheduler could not start or operate.
func NewPollingServiceError(msg string, err error) *APIError {
	return newError(ErrorTypePollingService, http.StatusServiceUnavailable, msg, err)
}

// NewRetentionError reports a failed purge or delete.
func NewRetentionError(msg string, err error) *APIError {
	return newError(ErrorTypeRetention, http.StatusInternalServerError, msg, err)
}

// AsAPIError returns the first APIError in err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// TypeOf returns the ErrorType of the first APIError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Type, true
	}
	return "", false
}

// IsType checks if any error in the chain is an APIError of type t
func IsType(err error, t ErrorType) bool {
	et, ok := TypeOf(err)
	return ok && et == t
}

// IsNotFound checks if an error is a NotFound error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a Validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

func IsAuth(err error) bool {
	return IsType(err, ErrorTypeAuth)
}

func IsConnection(err error) bool {
	return IsType(err, ErrorTypeConnection)
}

func IsTokenExpired(err error) bool {
	return IsType(err, ErrorTypeTokenExpired)
}

func IsUpstream(err error) bool {
	return IsType(err, ErrorTypeUpstream)
}

func IsPollingService(err error) bool {
	return IsType(err, ErrorTypePollingService)
}

// IsTransient reports errors the poller tolerates and retries on the next tick:
// authentication failures, rejected tokens and network problems.
func IsTransient(err error) bool {
	t, ok := TypeOf(err)
	if !ok {
		return false
	}
	switch t {
	case ErrorTypeAuth, ErrorTypeTokenExpired, ErrorTypeConnection:
		return true
	}
	return false
}

// StatusCode returns the HTTP status to answer with for err.
func StatusCode(err error) int {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) && apiErr.Code != 0 {
		return apiErr.Code
	}
	return http.StatusInternalServerError
}
