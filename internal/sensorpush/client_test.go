package sensorpush

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bakerysensors/hub/internal/config"
	"github.com/bakerysensors/hub/internal/errors"
)

// fakeAPI is a minimal SensorPush server. Tokens are "tok-<n>" where n is
// the login count.
type fakeAPI struct {
	logins        atomic.Int32
	samplesCalls  atomic.Int32
	rejectLogin   bool
	rejectTokens  int32 // reject this many authenticated calls with 401
	samplesStatus int
	expiresIn     int
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/authorize", func(w http.ResponseWriter, r *http.Request) {
		var body authorizeRequest
		json.NewDecoder(r.Body).Decode(&body)
		if f.rejectLogin || body.Email != "user@example.com" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"authorization": "code-1"})
	})
	mux.HandleFunc("/oauth/accesstoken", func(w http.ResponseWriter, r *http.Request) {
		n := f.logins.Add(1)
		resp := map[string]interface{}{"accesstoken": fmt.Sprintf("tok-%d", n)}
		if f.expiresIn > 0 {
			resp["expires_in"] = f.expiresIn
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/samples", func(w http.ResponseWriter, r *http.Request) {
		f.samplesCalls.Add(1)
		if r.Header.Get("Authorization") == "" {
			t.Error("samples called without authorization header")
		}
		if atomic.AddInt32(&f.rejectTokens, -1) >= 0 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.samplesStatus != 0 {
			w.WriteHeader(f.samplesStatus)
			return
		}
		w.Write([]byte(`{"sensors":{"100":[{"observed":"2025-01-01T12:00:00Z","temperature":4.5,"humidity":40}]},"total_samples":1}`))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sensors":{"100":{"status":"Active","temperature":4.5,"humidity":40,"timestamp":1735732800}},"timestamp":"2025-01-01T12:00:00Z"}`))
	})
	mux.HandleFunc("/sensors", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"100":{"name":"Walk-in","active":true}}`))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeAPI, opts ...ClientOption) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	cfg := config.SensorPushConfig{
		Username: "user@example.com",
		Password: "secret",
		BaseURL:  srv.URL,
		Timeout:  5 * time.Second,
	}
	return NewClient(cfg, opts...)
}

func TestAuthenticate(t *testing.T) {
	f := &fakeAPI{}
	c := newTestClient(t, f)

	if c.IsTokenValid() {
		t.Fatal("new client should have no valid token")
	}
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !c.IsTokenValid() {
		t.Error("expected valid token after login")
	}
	info := c.TokenInfo()
	if !info.HasToken || !info.Valid || info.Type != "Bearer" {
		t.Errorf("unexpected token info %+v", info)
	}
}

func TestAuthenticateRejected(t *testing.T) {
	f := &fakeAPI{rejectLogin: true}
	c := newTestClient(t, f)

	err := c.Authenticate(context.Background())
	if !errors.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if c.IsTokenValid() {
		t.Error("no token should be cached after a failed login")
	}
}

func TestAuthenticateMissingCredentials(t *testing.T) {
	c := NewClient(config.SensorPushConfig{BaseURL: "http://127.0.0.1:1"})
	if err := c.Authenticate(context.Background()); !errors.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestAuthenticateConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(config.SensorPushConfig{Username: "u", Password: "p", BaseURL: url, Timeout: time.Second})
	err := c.Authenticate(context.Background())
	if !errors.IsConnection(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if !errors.IsTransient(err) {
		t.Error("connection errors should be transient")
	}
}

func TestTokenExpiryBuffer(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeAPI{expiresIn: 3600}
	c := newTestClient(t, f, WithClock(func() time.Time { return now }))

	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	tests := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{"fresh", now, true},
		{"six minutes left", now.Add(54 * time.Minute), true},
		{"four minutes left", now.Add(56 * time.Minute), false},
		{"expired", now.Add(2 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.now = func() time.Time { return tt.at }
			if got := c.IsTokenValid(); got != tt.valid {
				t.Errorf("IsTokenValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestEnsureValidTokenRefreshesNearExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeAPI{expiresIn: 3600}
	c := newTestClient(t, f, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if err := c.EnsureValidToken(ctx); err != nil {
		t.Fatalf("EnsureValidToken: %v", err)
	}
	if err := c.EnsureValidToken(ctx); err != nil {
		t.Fatalf("EnsureValidToken: %v", err)
	}
	if got := f.logins.Load(); got != 1 {
		t.Fatalf("expected 1 login while token is valid, got %d", got)
	}

	now = now.Add(56 * time.Minute)
	if err := c.EnsureValidToken(ctx); err != nil {
		t.Fatalf("EnsureValidToken: %v", err)
	}
	if got := f.logins.Load(); got != 2 {
		t.Errorf("expected a second login inside the expiry buffer, got %d", got)
	}
}

func TestDoRetriesOnceAfter401(t *testing.T) {
	f := &fakeAPI{rejectTokens: 1}
	c := newTestClient(t, f)

	payload, err := c.Samples(context.Background(), SamplesQuery{})
	if err != nil {
		t.Fatalf("Samples: %v", err)
	}
	if len(payload.Sensors) != 1 {
		t.Errorf("expected 1 sensor, got %d", len(payload.Sensors))
	}
	if got := f.samplesCalls.Load(); got != 2 {
		t.Errorf("expected 2 samples calls, got %d", got)
	}
	if got := f.logins.Load(); got != 2 {
		t.Errorf("expected re-authentication after 401, got %d logins", got)
	}
}

func TestDoTokenExpiredAfterSecond401(t *testing.T) {
	f := &fakeAPI{rejectTokens: 5}
	c := newTestClient(t, f)

	_, err := c.Samples(context.Background(), SamplesQuery{})
	if !errors.IsTokenExpired(err) {
		t.Fatalf("expected token expired error, got %v", err)
	}
	if got := f.samplesCalls.Load(); got != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", got)
	}
	if c.IsTokenValid() {
		t.Error("rejected token should be cleared")
	}
}

func TestDoStatusMapping(t *testing.T) {
	tests := []struct {
		status  int
		message string
	}{
		{http.StatusBadRequest, "bad request - check your parameters"},
		{http.StatusForbidden, "forbidden - insufficient permissions"},
		{http.StatusNotFound, "/samples endpoint not found"},
		{http.StatusBadGateway, "server error - please try again later"},
		{http.StatusTeapot, "unexpected status 418 from /samples"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, &fakeAPI{samplesStatus: tt.status})
			_, err := c.Samples(context.Background(), SamplesQuery{})
			if !errors.IsUpstream(err) {
				t.Fatalf("expected upstream error, got %v", err)
			}
			apiErr, _ := errors.AsAPIError(err)
			if apiErr.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, apiErr.StatusCode)
			}
			if apiErr.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, apiErr.Message)
			}
			if errors.IsTransient(err) {
				t.Error("upstream errors are not transient")
			}
		})
	}
}

func TestStatusAndMetadata(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	ctx := context.Background()

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	var entry SensorStatus
	if err := json.Unmarshal(status.Sensors["100"], &entry); err != nil {
		t.Fatalf("decode status entry: %v", err)
	}
	if !entry.Active() {
		t.Error("status \"Active\" should count as active")
	}

	meta, err := c.SensorMetadata(ctx)
	if err != nil {
		t.Fatalf("SensorMetadata: %v", err)
	}
	if meta["100"].Name != "Walk-in" || meta["100"].ID != "100" {
		t.Errorf("unexpected metadata %+v", meta["100"])
	}
}

func TestSensorStatusActive(t *testing.T) {
	for status, want := range map[string]bool{
		"active":   true,
		" ACTIVE ": true,
		"inactive": false,
		"offline":  false,
		"":         false,
	} {
		if got := (SensorStatus{Status: status}).Active(); got != want {
			t.Errorf("Active(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  string
		ok   bool
		err  bool
	}{
		{"epoch number", `1735732800`, true, false},
		{"epoch float", `1735732800.0`, true, false},
		{"epoch string", `"1735732800"`, true, false},
		{"iso zulu", `"2025-01-01T12:00:00Z"`, true, false},
		{"iso offset", `"2025-01-01T13:00:00+01:00"`, true, false},
		{"iso naive", `"2025-01-01T12:00:00"`, true, false},
		{"null", `null`, false, false},
		{"empty", ``, false, false},
		{"garbage", `"yesterday"`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseTimestamp(json.RawMessage(tt.raw))
			if (err != nil) != tt.err {
				t.Fatalf("err = %v, want error %v", err, tt.err)
			}
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(want) {
				t.Errorf("got %v, want %v", got, want)
			}
			if ok && got.Location() != time.UTC {
				t.Errorf("expected UTC, got %v", got.Location())
			}
		})
	}
}

func TestParseTimestampFractionalEpoch(t *testing.T) {
	observed, err := ParseObserved("2025-01-01T12:00:00.123Z")
	if err != nil {
		t.Fatalf("ParseObserved: %v", err)
	}
	tests := []struct {
		raw  string
		want time.Time
	}{
		{`1735732800.123`, observed},
		{`"1735732800.123"`, observed},
		{`1735732800.5`, time.Date(2025, 1, 1, 12, 0, 0, 500000000, time.UTC)},
		{`1735732800.1234567891`, time.Date(2025, 1, 1, 12, 0, 0, 123456789, time.UTC)},
		{`1.7357328001e9`, time.Date(2025, 1, 1, 12, 0, 0, 100000000, time.UTC)},
	}
	for _, tt := range tests {
		got, ok, err := ParseTimestamp(json.RawMessage(tt.raw))
		if err != nil || !ok {
			t.Fatalf("ParseTimestamp(%s): ok=%v err=%v", tt.raw, ok, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
