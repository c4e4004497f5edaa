package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/sensorpush"
	"github.com/robfig/cron/v3"
	nuts "github.com/vaudience/go-nuts"
)

// runner adapts a job body to cron. Every completion, including a panic,
// reaches the listener exactly once.
func (s *PollingService) runner(name string, body func(ctx context.Context) error) cron.Job {
	active := s.activeFlag(name)
	return cron.FuncJob(func() {
		active.Store(true)
		defer active.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.JobTimeout)
		defer cancel()

		var err error
		defer func() {
			if r := recover(); r != nil {
				err = errors.NewInternalError(fmt.Sprintf("%s panicked: %v", name, r), nil)
				s.recorder.Record(ctx, err, name)
			}
			s.jobExecuted(name, err)
		}()
		err = body(ctx)
	})
}

// poll fetches samples and status. The two stages are independent: a
// failure in one never prevents the other. Authentication and connection
// problems are recorded but tolerated; anything else fails the run after
// both stages have been attempted.
func (s *PollingService) poll(ctx context.Context) error {
	nuts.L.Infof("[Scheduler] Polling SensorPush")
	samplesErr := s.pollSamples(ctx)
	statusErr := s.pollStatus(ctx)
	return stderrors.Join(samplesErr, statusErr)
}

func (s *PollingService) pollSamples(ctx context.Context) error {
	payload, err := s.client.Samples(ctx, sensorpush.SamplesQuery{})
	if err != nil {
		return s.jobError(ctx, err, "fetching sensor samples")
	}
	if _, err := s.ingestor.ProcessSamples(ctx, payload); err != nil {
		return s.jobError(ctx, err, "processing sensor samples")
	}
	return nil
}

func (s *PollingService) pollStatus(ctx context.Context) error {
	payload, err := s.client.Status(ctx)
	if err != nil {
		return s.jobError(ctx, err, "fetching sensor status")
	}
	if _, err := s.ingestor.ProcessStatus(ctx, payload); err != nil {
		return s.jobError(ctx, err, "processing sensor status")
	}
	return nil
}

// jobError records err and returns it unless it is transient.
func (s *PollingService) jobError(ctx context.Context, err error, operation string) error {
	id := s.recorder.Record(ctx, err, operation)
	if errors.IsTransient(err) {
		return nil
	}
	return fmt.Errorf("%s failed (error ID %s): %w", operation, id, err)
}

func (s *PollingService) purge(ctx context.Context) error {
	res := s.purger.PurgeOldReadings(ctx, s.opts.RetentionMonths)
	if !res.Success {
		return errors.NewRetentionError(fmt.Sprintf("purge failed (error ID %s): %s", res.ErrorID, res.ErrorMessage), nil)
	}
	nuts.L.Infof("[Scheduler] Purge removed %d readings older than %s", res.DeletedCount, res.CutoffDate.Format("2006-01-02"))
	return nil
}

// cronLogger routes cron's own messages to the go-nuts logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	nuts.L.Debugf("[Cron] %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	nuts.L.Errorf("[Cron] %s: %v %v", msg, err, keysAndValues)
}
