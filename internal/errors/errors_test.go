package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorChain(t *testing.T) {
	cause := fmt.Errorf("dial tcp: i/o timeout")
	err := fmt.Errorf("polling: %w", NewConnectionError("cannot reach SensorPush", cause))

	if !IsConnection(err) {
		t.Error("expected connection error through the wrap")
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected the cause to be reachable with errors.Is")
	}
	apiErr, ok := AsAPIError(err)
	if !ok || apiErr.Code != http.StatusBadGateway {
		t.Errorf("unexpected APIError %+v", apiErr)
	}
	if got := StatusCode(err); got != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", got)
	}
	if got := StatusCode(fmt.Errorf("plain")); got != http.StatusInternalServerError {
		t.Errorf("StatusCode for a plain error = %d", got)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewAuthError("bad credentials", nil), true},
		{NewTokenExpiredError("token rejected", nil), true},
		{NewConnectionError("timeout", nil), true},
		{NewUpstreamError(500, "server error", nil), false},
		{NewConfigurationError("missing credentials", nil), false},
		{NewDatabaseError("insert failed", nil), false},
		{fmt.Errorf("plain"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %t, want %t", tt.err, got, tt.want)
		}
	}
}

func TestUpstreamError(t *testing.T) {
	err := NewUpstreamError(http.StatusTooManyRequests, "SensorPush API returned 429", nil).WithRequestID("req-1")
	if !IsUpstream(err) || err.StatusCode != http.StatusTooManyRequests || err.RequestID != "req-1" {
		t.Errorf("unexpected upstream error %+v", err)
	}
	if err.Error() != "sensorpush_api: SensorPush API returned 429" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
