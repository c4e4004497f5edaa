package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bakerysensors/hub/internal/config"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/ingest"
	"github.com/bakerysensors/hub/internal/retention"
	"github.com/bakerysensors/hub/internal/sensorpush"
)

type fakeClient struct {
	authErr    error
	samplesErr error
	statusErr  error
	authCalls  atomic.Int32
}

func (c *fakeClient) Authenticate(ctx context.Context) error {
	c.authCalls.Add(1)
	return c.authErr
}

func (c *fakeClient) IsTokenValid() bool { return c.authErr == nil }

func (c *fakeClient) Samples(ctx context.Context, q sensorpush.SamplesQuery) (*sensorpush.SamplesPayload, error) {
	if c.samplesErr != nil {
		return nil, c.samplesErr
	}
	return &sensorpush.SamplesPayload{}, nil
}

func (c *fakeClient) Status(ctx context.Context) (*sensorpush.StatusPayload, error) {
	if c.statusErr != nil {
		return nil, c.statusErr
	}
	return &sensorpush.StatusPayload{}, nil
}

func (c *fakeClient) Close() {}

type fakeIngestor struct {
	samples   atomic.Int32
	status    atomic.Int32
	statusErr error
}

func (f *fakeIngestor) ProcessSamples(ctx context.Context, payload *sensorpush.SamplesPayload) (ingest.Result, error) {
	f.samples.Add(1)
	return ingest.Result{}, nil
}

func (f *fakeIngestor) ProcessStatus(ctx context.Context, payload *sensorpush.StatusPayload) (ingest.Result, error) {
	f.status.Add(1)
	return ingest.Result{}, f.statusErr
}

// slowIngestor blocks every samples call until release is closed and
// records the highest number of concurrent calls.
type slowIngestor struct {
	fakeIngestor
	entered  chan struct{}
	release  chan struct{}
	inflight atomic.Int32
	peak     atomic.Int32
	runs     atomic.Int32
}

func (s *slowIngestor) ProcessSamples(ctx context.Context, payload *sensorpush.SamplesPayload) (ingest.Result, error) {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.runs.Add(1)
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return ingest.Result{}, nil
}

type fakePurger struct {
	result retention.PurgeResult
	calls  atomic.Int32
}

func (f *fakePurger) PurgeOldReadings(ctx context.Context, retentionMonths int) retention.PurgeResult {
	f.calls.Add(1)
	return f.result
}

type memoryIntervals struct {
	mu      sync.Mutex
	minutes int
}

func (m *memoryIntervals) PollingInterval(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.minutes
}

func (m *memoryIntervals) SetPollingInterval(ctx context.Context, minutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.minutes = minutes
	return nil
}

type countingRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *countingRecorder) Record(ctx context.Context, err error, operation string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, operation)
	return fmt.Sprintf("ERR-%08X", len(r.ops))
}

func (r *countingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

type fixture struct {
	svc      *PollingService
	client   *fakeClient
	ingestor *fakeIngestor
	purger   *fakePurger
	rec      *countingRecorder
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	if opts.SensorPush.Username == "" && opts.SensorPush.Password == "" {
		opts.SensorPush = config.SensorPushConfig{Username: "bakery@example.com", Password: "secret"}
	}
	f := &fixture{
		client:   &fakeClient{},
		ingestor: &fakeIngestor{},
		purger:   &fakePurger{result: retention.PurgeResult{Success: true}},
		rec:      &countingRecorder{},
	}
	f.svc = New(opts, f.client, f.ingestor, f.purger, &memoryIntervals{minutes: 1}, f.rec)
	t.Cleanup(func() { f.svc.Stop() })
	return f
}

func TestStartFailsOnConnectionError(t *testing.T) {
	f := newFixture(t, Options{RetentionMonths: 12})
	f.client.authErr = errors.NewConnectionError("dial tcp: timeout", nil)

	err := f.svc.Start(context.Background())
	if !errors.IsPollingService(err) {
		t.Fatalf("expected polling service error, got %v", err)
	}
	if !strings.Contains(err.Error(), "ERR-00000001") {
		t.Errorf("expected the recorded error id in %q", err.Error())
	}
	if f.svc.IsRunning() || f.svc.Status().State != StateStopped {
		t.Error("service must stay stopped")
	}
	if f.svc.TriggerImmediatePoll() {
		t.Error("trigger must fail while stopped")
	}
}

func TestStartRequiresCredentials(t *testing.T) {
	f := newFixture(t, Options{SensorPush: config.SensorPushConfig{Username: "bakery@example.com"}})

	err := f.svc.Start(context.Background())
	if !errors.IsPollingService(err) {
		t.Fatalf("expected polling service error, got %v", err)
	}
	if !strings.Contains(err.Error(), "SENSORPUSH_PASSWORD") {
		t.Errorf("expected the missing variable to be named in %q", err.Error())
	}
	if f.client.authCalls.Load() != 0 {
		t.Error("login must not be attempted without credentials")
	}
}

func TestStartRejectsInvalidPurgeSchedule(t *testing.T) {
	f := newFixture(t, Options{PurgeSchedule: "every night"})
	if err := f.svc.Start(context.Background()); !errors.IsPollingService(err) {
		t.Fatalf("expected polling service error, got %v", err)
	}
	if f.svc.IsRunning() {
		t.Error("service must stay stopped")
	}
}

func TestStartStopAndTriggers(t *testing.T) {
	f := newFixture(t, Options{RetentionMonths: 3})
	f.purger.result = retention.PurgeResult{ErrorID: "ERR-DEADBEEF", ErrorMessage: "database is locked"}
	ctx := context.Background()

	if err := f.svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.svc.Start(ctx); err != nil {
		t.Errorf("second Start should be a no-op, got %v", err)
	}
	if !f.svc.IsRunning() {
		t.Fatal("expected running service")
	}

	if !f.svc.TriggerImmediatePoll() {
		t.Error("expected poll trigger to be accepted")
	}
	if !f.svc.TriggerImmediatePurge() {
		t.Error("expected purge trigger to be accepted")
	}

	if err := f.svc.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	st := f.svc.Status()
	if st.IsRunning || st.State != StateStopped {
		t.Errorf("unexpected state after stop %+v", st)
	}
	if st.SuccessfulPolls != 1 || st.TotalPolls != 1 {
		t.Errorf("expected one successful poll, got %+v", st)
	}
	if st.FailedPurges != 1 || st.TotalPurges != 1 {
		t.Errorf("expected one failed purge, got %+v", st)
	}
	if st.EffectiveRetentionMonths != 6 || st.DataRetentionMonths != 3 {
		t.Errorf("unexpected retention in status %+v", st)
	}
	if st.LastPollTime == nil || st.LastPurgeTime == nil {
		t.Error("expected last run times to be set")
	}
	if f.ingestor.samples.Load() != 1 || f.ingestor.status.Load() != 1 {
		t.Error("expected both poll stages to run")
	}
}

func TestRunPollOnceToleratesTransientErrors(t *testing.T) {
	f := newFixture(t, Options{})
	f.client.samplesErr = errors.NewTokenExpiredError("token rejected twice", nil)

	if err := f.svc.RunPollOnce(context.Background()); err != nil {
		t.Fatalf("transient failure must not fail the run: %v", err)
	}
	if f.ingestor.status.Load() != 1 {
		t.Error("status stage must run after a samples failure")
	}
	if f.rec.count() != 1 {
		t.Errorf("expected the transient error to be recorded once, got %d", f.rec.count())
	}
	if st := f.svc.Status(); st.SuccessfulPolls != 1 || st.FailedPolls != 0 {
		t.Errorf("unexpected counters %+v", st)
	}
}

func TestRunPollOnceFailsOnUpstreamErrors(t *testing.T) {
	f := newFixture(t, Options{})
	samplesErr := errors.NewUpstreamError(500, "SensorPush API returned 500", nil)
	f.client.samplesErr = samplesErr
	f.client.statusErr = errors.NewUpstreamError(502, "SensorPush API returned 502", nil)

	err := f.svc.RunPollOnce(context.Background())
	if err == nil {
		t.Fatal("expected the run to fail")
	}
	if !stderrors.Is(err, samplesErr) {
		t.Errorf("expected the samples error in %v", err)
	}
	if f.rec.count() != 2 {
		t.Errorf("expected both stage failures recorded, got %d", f.rec.count())
	}
	if st := f.svc.Status(); st.FailedPolls != 1 {
		t.Errorf("unexpected counters %+v", st)
	}
}

func TestRunPollOnceLoginFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.client.authErr = errors.NewAuthError("invalid credentials", nil)

	if err := f.svc.RunPollOnce(context.Background()); !errors.IsPollingService(err) {
		t.Fatalf("expected polling service error, got %v", err)
	}
	if f.ingestor.samples.Load() != 0 {
		t.Error("nothing should be fetched without a login")
	}
}

func TestUpdatePollingInterval(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	if err := f.svc.UpdatePollingInterval(ctx, 0); !errors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	if err := f.svc.UpdatePollingInterval(ctx, 10); err != nil {
		t.Fatalf("UpdatePollingInterval (stopped): %v", err)
	}
	if got := f.svc.Status().PollingIntervalMinutes; got != 10 {
		t.Errorf("expected interval 10, got %d", got)
	}

	if err := f.svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := f.svc.Status().PollingIntervalMinutes; got != 10 {
		t.Errorf("stored interval should be used on start, got %d", got)
	}
	if err := f.svc.UpdatePollingInterval(ctx, 2); err != nil {
		t.Fatalf("UpdatePollingInterval (running): %v", err)
	}

	st := f.svc.Status()
	if st.PollingIntervalMinutes != 2 {
		t.Errorf("expected interval 2, got %d", st.PollingIntervalMinutes)
	}
	if st.NextPollTime != nil && st.NextPollTime.After(time.Now().Add(3*time.Minute)) {
		t.Errorf("next poll %v is beyond the new interval", st.NextPollTime)
	}
}

func TestStatusFailureStillRunsSamples(t *testing.T) {
	f := newFixture(t, Options{})
	f.ingestor.statusErr = errors.NewDatabaseError("failed to commit status", fmt.Errorf("disk I/O error"))

	err := f.svc.RunPollOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "processing sensor status") {
		t.Fatalf("expected the status stage to fail the run, got %v", err)
	}
	if f.ingestor.samples.Load() != 1 {
		t.Error("samples stage must run despite the status failure")
	}
	if f.rec.count() != 1 {
		t.Errorf("expected the status failure recorded once, got %d", f.rec.count())
	}
	if st := f.svc.Status(); st.FailedPolls != 1 || st.SuccessfulPolls != 0 {
		t.Errorf("unexpected counters %+v", st)
	}
}

func TestPollRunsAreNeverConcurrent(t *testing.T) {
	slow := &slowIngestor{entered: make(chan struct{}, 1), release: make(chan struct{})}
	rec := &countingRecorder{}
	svc := New(Options{SensorPush: config.SensorPushConfig{Username: "bakery@example.com", Password: "secret"}},
		&fakeClient{}, slow, &fakePurger{result: retention.PurgeResult{Success: true}}, &memoryIntervals{minutes: 1}, rec)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if !svc.TriggerImmediatePoll() {
		t.Fatal("expected poll trigger to be accepted")
	}
	select {
	case <-slow.entered:
	case <-time.After(time.Second):
		t.Fatal("poll run did not start")
	}
	if !svc.JobInProgress(JobPoll) || svc.JobInProgress(JobPurge) {
		t.Error("expected only the poll job to be in progress")
	}

	for i := 0; i < 5; i++ {
		svc.TriggerImmediatePoll()
	}
	time.Sleep(100 * time.Millisecond)
	close(slow.release)

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if peak := slow.peak.Load(); peak != 1 {
		t.Errorf("expected at most one poll in flight, saw %d", peak)
	}
	if svc.JobInProgress(JobPoll) {
		t.Error("no poll should be in progress after stop")
	}
	st := svc.Status()
	if st.TotalPolls != int64(slow.runs.Load()) {
		t.Errorf("skipped runs must not be counted: %d polls for %d runs", st.TotalPolls, slow.runs.Load())
	}
}
