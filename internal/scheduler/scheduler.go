// Package scheduler runs the background SensorPush poll and the daily
// retention purge.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bakerysensors/hub/internal/config"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/ingest"
	"github.com/bakerysensors/hub/internal/retention"
	"github.com/bakerysensors/hub/internal/sensorpush"
	"github.com/robfig/cron/v3"
	nuts "github.com/vaudience/go-nuts"
)

// State is the lifecycle state of the polling service.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

const (
	JobPoll  = "sensor_polling"
	JobPurge = "data_purge"

	defaultJobTimeout = 5 * time.Minute
)

// Client is the part of the SensorPush client the scheduler needs.
type Client interface {
	Authenticate(ctx context.Context) error
	IsTokenValid() bool
	Samples(ctx context.Context, q sensorpush.SamplesQuery) (*sensorpush.SamplesPayload, error)
	Status(ctx context.Context) (*sensorpush.StatusPayload, error)
	Close()
}

// Ingestor stores fetched payloads.
type Ingestor interface {
	ProcessSamples(ctx context.Context, payload *sensorpush.SamplesPayload) (ingest.Result, error)
	ProcessStatus(ctx context.Context, payload *sensorpush.StatusPayload) (ingest.Result, error)
}

// Purger applies the retention policy.
type Purger interface {
	PurgeOldReadings(ctx context.Context, retentionMonths int) retention.PurgeResult
}

// IntervalStore persists the polling interval.
type IntervalStore interface {
	PollingInterval(ctx context.Context) int
	SetPollingInterval(ctx context.Context, minutes int) error
}

// ErrorRecorder assigns correlation IDs to caught errors.
type ErrorRecorder interface {
	Record(ctx context.Context, err error, operation string) string
}

// Options are the static settings of a PollingService.
type Options struct {
	SensorPush             config.SensorPushConfig
	RetentionMonths        int
	PurgeSchedule          string
	DefaultIntervalMinutes int
	JobTimeout             time.Duration
}

// OptionsFromConfig derives Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SensorPush:             cfg.SensorPush,
		RetentionMonths:        cfg.Retention.Months,
		PurgeSchedule:          cfg.Polling.PurgeSchedule,
		DefaultIntervalMinutes: cfg.Polling.DefaultIntervalMinutes,
		JobTimeout:             cfg.Polling.JobTimeout,
	}
}

// PollingService owns the poll and purge jobs. Each job is wrapped once in a
// skip-if-still-running chain, so scheduled and manual runs of the same job
// never overlap, including across interval changes and restarts.
type PollingService struct {
	opts      Options
	client    Client
	ingestor  Ingestor
	purger    Purger
	intervals IntervalStore
	recorder  ErrorRecorder

	pollJob  cron.Job
	purgeJob cron.Job
	// set while a job body executes; skipped runs never set it
	pollActive  atomic.Bool
	purgeActive atomic.Bool

	mu          sync.Mutex
	state       State
	cron        *cron.Cron
	cronRunning bool
	pollEntry   cron.EntryID
	purgeEntry  cron.EntryID
	interval    int
	triggers    sync.WaitGroup

	statsMu sync.Mutex
	stats   runStats
}

// New creates a stopped PollingService
func New(opts Options, client Client, ingestor Ingestor, purger Purger, intervals IntervalStore, recorder ErrorRecorder) *PollingService {
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}
	if opts.PurgeSchedule == "" {
		opts.PurgeSchedule = config.DefaultPurgeSchedule
	}
	if opts.DefaultIntervalMinutes < 1 {
		opts.DefaultIntervalMinutes = 1
	}
	s := &PollingService{
		opts:      opts,
		client:    client,
		ingestor:  ingestor,
		purger:    purger,
		intervals: intervals,
		recorder:  recorder,
		state:     StateStopped,
		interval:  opts.DefaultIntervalMinutes,
	}

	logger := cronLogger{}
	s.pollJob = cron.NewChain(cron.SkipIfStillRunning(logger)).Then(s.runner(JobPoll, s.poll))
	s.purgeJob = cron.NewChain(cron.SkipIfStillRunning(logger)).Then(s.runner(JobPurge, s.purge))
	return s
}

// Start validates configuration, checks the SensorPush login once and
// schedules both jobs. On failure the service stays stopped and a polling
// service error carrying the recorded error ID is returned.
func (s *PollingService) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateRunning, StateStarting:
		s.mu.Unlock()
		nuts.L.Warnf("[Scheduler] Polling service is already running")
		return nil
	case StateStopping:
		s.mu.Unlock()
		return errors.NewPollingServiceError("polling service is stopping", nil)
	}
	s.state = StateStarting
	s.mu.Unlock()

	nuts.L.Infof("[Scheduler] Starting polling service")

	if missing := s.opts.SensorPush.MissingCredentials(); len(missing) > 0 {
		err := errors.NewConfigurationError("missing required configuration: "+strings.Join(missing, ", "), nil)
		return s.failStart(ctx, err, "validating polling configuration")
	}
	for _, w := range retention.ValidateConfig(s.opts.RetentionMonths).Warnings {
		nuts.L.Warnf("[Scheduler] %s", w)
	}

	if err := s.client.Authenticate(ctx); err != nil {
		return s.failStart(ctx, err, "testing SensorPush connection")
	}

	interval := s.intervals.PollingInterval(ctx)
	if interval < 1 {
		interval = 1
	}

	c := cron.New(cron.WithLogger(cronLogger{}))
	pollEntry := c.Schedule(cron.Every(time.Duration(interval)*time.Minute), s.pollJob)
	purgeEntry, err := c.AddJob(s.opts.PurgeSchedule, s.purgeJob)
	if err != nil {
		cfgErr := errors.NewConfigurationError(fmt.Sprintf("invalid purge schedule %q", s.opts.PurgeSchedule), err)
		return s.failStart(ctx, cfgErr, "scheduling purge job")
	}

	s.mu.Lock()
	s.cron = c
	s.pollEntry = pollEntry
	s.purgeEntry = purgeEntry
	s.interval = interval
	c.Start()
	s.cronRunning = true
	s.state = StateRunning
	s.mu.Unlock()

	nuts.L.Infof("[Scheduler] Polling service started: poll every %d minute(s), purge at %q", interval, s.opts.PurgeSchedule)
	return nil
}

func (s *PollingService) failStart(ctx context.Context, cause error, operation string) error {
	id := s.recorder.Record(ctx, cause, operation)
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	return errors.NewPollingServiceError(fmt.Sprintf("failed to start polling service (error ID %s)", id), cause)
}

// Stop unschedules both jobs and waits for running executions to finish.
func (s *PollingService) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		nuts.L.Warnf("[Scheduler] Polling service is not running")
		return nil
	}
	s.state = StateStopping
	c := s.cron
	c.Remove(s.pollEntry)
	c.Remove(s.purgeEntry)
	s.mu.Unlock()

	nuts.L.Infof("[Scheduler] Stopping polling service, waiting for running jobs")
	<-c.Stop().Done()
	s.triggers.Wait()

	s.mu.Lock()
	s.cron = nil
	s.cronRunning = false
	s.state = StateStopped
	s.mu.Unlock()

	nuts.L.Infof("[Scheduler] Polling service stopped")
	return nil
}

// IsRunning reports whether the service is running and its cron runner alive.
func (s *PollingService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning && s.cronRunning
}

// TriggerImmediatePoll schedules a poll run now. It returns false when the
// service is not running. The run is still skipped if another poll is in
// progress when it starts; check JobInProgress first to report that.
func (s *PollingService) TriggerImmediatePoll() bool {
	return s.trigger(JobPoll, s.pollJob)
}

// TriggerImmediatePurge schedules a purge run now, like TriggerImmediatePoll.
func (s *PollingService) TriggerImmediatePurge() bool {
	return s.trigger(JobPurge, s.purgeJob)
}

// JobInProgress reports whether a run of job is executing right now.
func (s *PollingService) JobInProgress(job string) bool {
	switch job {
	case JobPoll:
		return s.pollActive.Load()
	case JobPurge:
		return s.purgeActive.Load()
	}
	return false
}

func (s *PollingService) activeFlag(job string) *atomic.Bool {
	if job == JobPurge {
		return &s.purgeActive
	}
	return &s.pollActive
}

func (s *PollingService) trigger(name string, job cron.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		nuts.L.Warnf("[Scheduler] Cannot trigger %s: polling service is not running", name)
		return false
	}
	s.triggers.Add(1)
	go func() {
		defer s.triggers.Done()
		job.Run()
	}()
	nuts.L.Infof("[Scheduler] Triggered immediate %s", name)
	return true
}

// UpdatePollingInterval persists a new interval and, when running,
// reschedules the poll job with it.
func (s *PollingService) UpdatePollingInterval(ctx context.Context, minutes int) error {
	if minutes < 1 {
		return errors.NewValidationError("polling interval must be at least 1 minute", nil)
	}
	if err := s.intervals.SetPollingInterval(ctx, minutes); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = minutes
	if s.state != StateRunning {
		nuts.L.Infof("[Scheduler] Polling interval set to %d minute(s), applied on next start", minutes)
		return nil
	}
	s.cron.Remove(s.pollEntry)
	s.pollEntry = s.cron.Schedule(cron.Every(time.Duration(minutes)*time.Minute), s.pollJob)
	nuts.L.Infof("[Scheduler] Polling interval updated to %d minute(s)", minutes)
	return nil
}

// RunPollOnce runs the poll job body synchronously and records it like a
// scheduled run. It is meant for one-shot tools; it does not coordinate
// with a running scheduler in another process.
func (s *PollingService) RunPollOnce(ctx context.Context) error {
	if err := s.client.Authenticate(ctx); err != nil {
		id := s.recorder.Record(ctx, err, "testing SensorPush connection")
		return errors.NewPollingServiceError(fmt.Sprintf("SensorPush login failed (error ID %s)", id), err)
	}
	err := s.poll(ctx)
	s.jobExecuted(JobPoll, err)
	return err
}

// Close stops the service if needed and releases the API client.
func (s *PollingService) Close() error {
	err := s.Stop()
	s.client.Close()
	return err
}
