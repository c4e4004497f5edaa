package scheduler

import (
	"time"

	"github.com/bakerysensors/hub/internal/retention"
	nuts "github.com/vaudience/go-nuts"
)

type runStats struct {
	lastPoll         *time.Time
	lastPurge        *time.Time
	successfulPolls  int64
	failedPolls      int64
	successfulPurges int64
	failedPurges     int64
}

// Status is a point-in-time copy of the scheduler state.
type Status struct {
	IsRunning                bool       `json:"is_running"`
	State                    State      `json:"state"`
	SchedulerRunning         bool       `json:"scheduler_running"`
	PollingIntervalMinutes   int        `json:"polling_interval_minutes"`
	LastPollTime             *time.Time `json:"last_poll_time"`
	LastPurgeTime            *time.Time `json:"last_purge_time"`
	NextPollTime             *time.Time `json:"next_poll_time,omitempty"`
	NextPurgeTime            *time.Time `json:"next_purge_time,omitempty"`
	SuccessfulPolls          int64      `json:"successful_polls"`
	FailedPolls              int64      `json:"failed_polls"`
	TotalPolls               int64      `json:"total_polls"`
	SuccessfulPurges         int64      `json:"successful_purges"`
	FailedPurges             int64      `json:"failed_purges"`
	TotalPurges              int64      `json:"total_purges"`
	DataRetentionMonths      int        `json:"data_retention_months"`
	EffectiveRetentionMonths int        `json:"effective_retention_months"`
	APITokenValid            bool       `json:"api_token_valid"`
}

// jobExecuted is the completion listener for both jobs.
func (s *PollingService) jobExecuted(job string, err error) {
	now := time.Now().UTC()

	s.statsMu.Lock()
	switch job {
	case JobPoll:
		s.stats.lastPoll = &now
		if err != nil {
			s.stats.failedPolls++
		} else {
			s.stats.successfulPolls++
		}
	case JobPurge:
		s.stats.lastPurge = &now
		if err != nil {
			s.stats.failedPurges++
		} else {
			s.stats.successfulPurges++
		}
	}
	s.statsMu.Unlock()

	if err != nil {
		nuts.L.Errorf("[Scheduler] Job %s failed: %v", job, err)
		return
	}
	nuts.L.Infof("[Scheduler] Job %s completed", job)
}

// Status returns a snapshot of the scheduler. It never fails.
func (s *PollingService) Status() Status {
	st := Status{
		DataRetentionMonths:      s.opts.RetentionMonths,
		EffectiveRetentionMonths: retention.EffectiveMonths(s.opts.RetentionMonths),
		APITokenValid:            s.client.IsTokenValid(),
	}

	s.mu.Lock()
	st.State = s.state
	st.SchedulerRunning = s.cronRunning
	st.IsRunning = s.state == StateRunning && s.cronRunning
	st.PollingIntervalMinutes = s.interval
	if s.cron != nil {
		st.NextPollTime = nextRun(s.cron.Entry(s.pollEntry).Next)
		st.NextPurgeTime = nextRun(s.cron.Entry(s.purgeEntry).Next)
	}
	s.mu.Unlock()

	s.statsMu.Lock()
	st.LastPollTime = copyTime(s.stats.lastPoll)
	st.LastPurgeTime = copyTime(s.stats.lastPurge)
	st.SuccessfulPolls = s.stats.successfulPolls
	st.FailedPolls = s.stats.failedPolls
	st.SuccessfulPurges = s.stats.successfulPurges
	st.FailedPurges = s.stats.failedPurges
	s.statsMu.Unlock()

	st.TotalPolls = st.SuccessfulPolls + st.FailedPolls
	st.TotalPurges = st.SuccessfulPurges + st.FailedPurges
	return st
}

func nextRun(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
