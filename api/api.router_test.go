package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bakerysensors/hub/api/resources"
	"github.com/bakerysensors/hub/internal/cache"
	"github.com/bakerysensors/hub/internal/config"
	"github.com/bakerysensors/hub/internal/database"
	"github.com/bakerysensors/hub/internal/hubservice"
	"github.com/bakerysensors/hub/internal/models"
	"github.com/bakerysensors/hub/internal/retention"
	"github.com/bakerysensors/hub/internal/scheduler"
)

const testPIN = "4821"

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{AllowedOrigins: []string{"*"}},
		SensorPush: config.SensorPushConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second},
		Polling:    config.PollingConfig{DefaultIntervalMinutes: 1, PurgeSchedule: config.DefaultPurgeSchedule, JobTimeout: time.Minute},
		Retention:  config.RetentionConfig{Months: 12},
		Auth: config.AuthConfig{
			JWTSecret:        "router-test-secret",
			SessionTimeout:   time.Hour,
			MaxLoginAttempts: 2,
			LockoutDuration:  time.Minute,
		},
	}
}

func newTestRouter(t *testing.T) (*Router, *hubservice.HubService) {
	t.Helper()
	ctx := context.Background()
	svc := hubservice.New(testConfig(), database.NewTestDB(t), cache.NewMemoryCache())
	if err := svc.Settings.SetManagerPin(ctx, testPIN); err != nil {
		t.Fatalf("SetManagerPin: %v", err)
	}

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tx, err := svc.Sensors.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	defer tx.Rollback()
	if err := svc.Sensors.CreateTx(ctx, tx, models.NewSensor("100", "Walk-in Freezer", true)); err != nil {
		t.Fatalf("CreateTx: %v", err)
	}
	for i, temp := range []float64{4.5, 60} {
		r := &models.SensorReading{SensorID: "100", Timestamp: base.Add(time.Duration(i) * 5 * time.Minute), Temperature: temp, Humidity: 45}
		if err := svc.Readings.InsertTx(ctx, tx, r); err != nil {
			t.Fatalf("InsertTx: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	return NewRouter(svc), svc
}

func do(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/auth/login", "", resources.LoginRequest{PIN: testPIN})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp resources.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.Token
}

func TestPublicRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	if rec := do(t, r, http.MethodGet, "/api/v1/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health: status %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/api/v1/swagger.json", "", nil); rec.Code != http.StatusOK {
		t.Errorf("swagger: status %d", rec.Code)
	}

	rec := do(t, r, http.MethodGet, "/api/v1/sensors?active=true", "", nil)
	var sensors []models.Sensor
	if err := json.NewDecoder(rec.Body).Decode(&sensors); err != nil || len(sensors) != 1 {
		t.Errorf("sensors: %d sensors (%v)", len(sensors), err)
	}
	if rec := do(t, r, http.MethodGet, "/api/v1/sensors?category=bakery", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown category: status %d", rec.Code)
	}

	if rec := do(t, r, http.MethodGet, "/api/v1/sensors/999", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing sensor: status %d", rec.Code)
	}

	rec = do(t, r, http.MethodGet, "/api/v1/sensors/100", "", nil)
	var overview hubservice.SensorOverview
	if err := json.NewDecoder(rec.Body).Decode(&overview); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if overview.Summary == nil || overview.Summary.TotalRecords != 2 {
		t.Errorf("unexpected overview summary %+v", overview.Summary)
	}

	rec = do(t, r, http.MethodGet, "/api/v1/sensors/100/readings?start=2025-01-01&limit=1", "", nil)
	var readings []models.SensorReading
	if err := json.NewDecoder(rec.Body).Decode(&readings); err != nil {
		t.Fatalf("decode readings: %v", err)
	}
	if len(readings) != 1 || readings[0].Temperature != 60 {
		t.Errorf("expected the newest reading only, got %+v", readings)
	}
	if rec := do(t, r, http.MethodGet, "/api/v1/sensors/100/readings?start=2025-02-01&end=2025-01-01", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range: status %d", rec.Code)
	}

	rec = do(t, r, http.MethodGet, "/api/v1/sensors/100/latest", "", nil)
	var latest models.ReadingWithBreach
	if err := json.NewDecoder(rec.Body).Decode(&latest); err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if !latest.Breach.TemperatureHigh || latest.Breach.BreachType != models.BreachCritical {
		t.Errorf("expected critical breach, got %+v", latest.Breach)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodPut, "/api/v1/sensors/100"},
		{http.MethodGet, "/api/v1/polling/status"},
		{http.MethodPost, "/api/v1/polling/poll"},
		{http.MethodGet, "/api/v1/retention/stats"},
		{http.MethodDelete, "/api/v1/retention/readings"},
		{http.MethodGet, "/api/v1/settings"},
	} {
		if rec := do(t, r, route.method, route.path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status %d, want 401", route.method, route.path, rec.Code)
		}
	}
}

func TestLoginLockout(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/v1/auth/login", "", resources.LoginRequest{PIN: "0000"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong PIN: status %d", rec.Code)
	}
	var body struct {
		Details map[string]int `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Details["attempts_remaining"] != 1 {
		t.Errorf("expected 1 attempt remaining, got %v (%v)", body.Details, err)
	}

	do(t, r, http.MethodPost, "/api/v1/auth/login", "", resources.LoginRequest{PIN: "0000"})
	rec = do(t, r, http.MethodPost, "/api/v1/auth/login", "", resources.LoginRequest{PIN: testPIN})
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Errorf("locked out client: status %d, Retry-After %q", rec.Code, rec.Header().Get("Retry-After"))
	}

	if rec := do(t, r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{}); rec.Code != http.StatusTooManyRequests {
		t.Errorf("locked out client with empty body: status %d", rec.Code)
	}
}

func TestSensorUpdate(t *testing.T) {
	r, _ := newTestRouter(t)
	token := login(t, r)

	rec := do(t, r, http.MethodPut, "/api/v1/sensors/100", token, map[string]interface{}{"name": "Proofer", "max_temp": 70, "category": "ambient"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d: %s", rec.Code, rec.Body.String())
	}
	var sensor models.Sensor
	if err := json.NewDecoder(rec.Body).Decode(&sensor); err != nil {
		t.Fatalf("decode sensor: %v", err)
	}
	if sensor.Name != "Proofer" || sensor.MaxTemp != 70 || sensor.Category == nil || *sensor.Category != models.CategoryAmbient {
		t.Errorf("unexpected sensor %+v", sensor)
	}

	if rec := do(t, r, http.MethodPut, "/api/v1/sensors/100", token, map[string]interface{}{"min_temp": 80}); rec.Code != http.StatusBadRequest {
		t.Errorf("min above max: status %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPut, "/api/v1/sensors/999", token, map[string]interface{}{"name": "Ghost"}); rec.Code != http.StatusNotFound {
		t.Errorf("missing sensor: status %d", rec.Code)
	}

	latest := do(t, r, http.MethodGet, "/api/v1/sensors/100/latest", "", nil)
	var withBreach models.ReadingWithBreach
	json.NewDecoder(latest.Body).Decode(&withBreach)
	if withBreach.Breach.HasBreach {
		t.Errorf("raised limit should clear the breach, got %+v", withBreach.Breach)
	}
}

func TestPollingRoutes(t *testing.T) {
	r, svc := newTestRouter(t)
	token := login(t, r)

	rec := do(t, r, http.MethodGet, "/api/v1/polling/status", token, nil)
	var st scheduler.Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.IsRunning || st.EffectiveRetentionMonths != 12 {
		t.Errorf("unexpected status %+v", st)
	}

	if rec := do(t, r, http.MethodPost, "/api/v1/polling/poll", token, nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("poll while stopped: status %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/api/v1/polling/purge", token, nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("purge while stopped: status %d", rec.Code)
	}

	if rec := do(t, r, http.MethodPut, "/api/v1/polling/interval", token, resources.IntervalRequest{Minutes: 0}); rec.Code != http.StatusBadRequest {
		t.Errorf("zero interval: status %d", rec.Code)
	}
	rec = do(t, r, http.MethodPut, "/api/v1/polling/interval", token, resources.IntervalRequest{Minutes: 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("interval: status %d: %s", rec.Code, rec.Body.String())
	}
	if got := svc.Settings.PollingInterval(context.Background()); got != 5 {
		t.Errorf("expected stored interval 5, got %d", got)
	}

	rec = do(t, r, http.MethodGet, "/api/v1/settings", token, nil)
	var settings []models.Setting
	if err := json.NewDecoder(rec.Body).Decode(&settings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	for _, s := range settings {
		if s.Key == "manager_pin_hash" {
			t.Error("PIN hash must not be listed")
		}
	}
}

func TestRetentionRoutes(t *testing.T) {
	r, _ := newTestRouter(t)
	token := login(t, r)

	rec := do(t, r, http.MethodGet, "/api/v1/retention/stats", token, nil)
	var stats retention.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalRecords != 2 || stats.EffectiveMonths != 12 {
		t.Errorf("unexpected stats %+v", stats)
	}

	if rec := do(t, r, http.MethodDelete, "/api/v1/retention/readings", token, map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty delete: status %d", rec.Code)
	}
	inverted := map[string]string{"start_date": "2025-02-01T00:00:00Z", "end_date": "2025-01-01T00:00:00Z"}
	if rec := do(t, r, http.MethodDelete, "/api/v1/retention/readings", token, inverted); rec.Code != http.StatusBadRequest {
		t.Errorf("inverted delete: status %d", rec.Code)
	}

	ranged := map[string]interface{}{
		"start_date": "2025-01-01T12:04:00Z",
		"end_date":   "2025-01-01T13:00:00Z",
		"sensor_ids": []string{"100"},
	}
	rec = do(t, r, http.MethodDelete, "/api/v1/retention/readings", token, ranged)
	var res retention.DeleteResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode delete: %v", err)
	}
	if rec.Code != http.StatusOK || res.DeletedCount != 1 {
		t.Errorf("range delete: status %d result %+v", rec.Code, res)
	}

	rec = do(t, r, http.MethodDelete, "/api/v1/retention/readings", token, map[string]string{"sensor_id": "100"})
	res = retention.DeleteResult{}
	json.NewDecoder(rec.Body).Decode(&res)
	if rec.Code != http.StatusOK || res.DeletedCount != 1 {
		t.Errorf("sensor delete: status %d result %+v", rec.Code, res)
	}

	rec = do(t, r, http.MethodGet, "/api/v1/retention/sensors/100/summary", token, nil)
	var summary models.SensorDataSummary
	json.NewDecoder(rec.Body).Decode(&summary)
	if summary.TotalRecords != 0 {
		t.Errorf("expected no readings left, got %+v", summary)
	}

	if rec := do(t, r, http.MethodGet, "/api/v1/errors?limit=abc", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status %d", rec.Code)
	}
	rec = do(t, r, http.MethodGet, "/api/v1/errors", token, nil)
	var records []models.ErrorRecord
	if err := json.NewDecoder(rec.Body).Decode(&records); err != nil {
		t.Fatalf("decode errors: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected an empty error log, got %d records", len(records))
	}
}

func TestTriggerPollWhileRunning(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/authorize", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"authorization": "code-1"})
	})
	mux.HandleFunc("/oauth/accesstoken", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"accesstoken": "tok-1"})
	})
	mux.HandleFunc("/samples", func(w http.ResponseWriter, r *http.Request) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		w.Write([]byte(`{"sensors":{}}`))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sensors":{}}`))
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	cfg := testConfig()
	cfg.SensorPush = config.SensorPushConfig{BaseURL: upstream.URL, Username: "bakery@example.com", Password: "secret", Timeout: 10 * time.Second}
	ctx := context.Background()
	svc := hubservice.New(cfg, database.NewTestDB(t), cache.NewMemoryCache())
	if err := svc.Settings.SetManagerPin(ctx, testPIN); err != nil {
		t.Fatalf("SetManagerPin: %v", err)
	}
	if err := svc.Polling.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		unblock()
		svc.Polling.Stop()
	})

	r := NewRouter(svc)
	token := login(t, r)

	rec := do(t, r, http.MethodPost, "/api/v1/polling/poll", token, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first trigger: status %d: %s", rec.Code, rec.Body.String())
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("poll never reached SensorPush")
	}

	rec = do(t, r, http.MethodPost, "/api/v1/polling/poll", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second trigger: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp resources.TriggerResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode trigger: %v", err)
	}
	if !resp.AlreadyRunning || resp.Triggered {
		t.Errorf("expected an already-running response, got %+v", resp)
	}

	unblock()
	if err := svc.Polling.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st := svc.Polling.Status(); st.TotalPolls != 1 {
		t.Errorf("expected exactly one poll run, got %+v", st)
	}
}
