// Package retention enforces how long sensor readings are kept.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/models"
	"github.com/bakerysensors/hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

const (
	// MinRetentionMonths is the floor applied to any configured retention.
	MinRetentionMonths = 6
	// DaysPerMonth approximates a month for cutoff arithmetic.
	DaysPerMonth = 30
	// longRetentionMonths triggers a storage warning in ValidateConfig.
	longRetentionMonths = 60

	EventPurged  = "readings.purged"
	EventDeleted = "readings.deleted"
)

// EffectiveMonths applies the retention floor.
func EffectiveMonths(months int) int {
	if months < MinRetentionMonths {
		return MinRetentionMonths
	}
	return months
}

// Cutoff returns the instant before which readings are purged.
func Cutoff(now time.Time, months int) time.Time {
	return now.UTC().AddDate(0, 0, -EffectiveMonths(months)*DaysPerMonth)
}

// ErrorRecorder assigns correlation IDs to caught errors.
type ErrorRecorder interface {
	Record(ctx context.Context, err error, operation string) string
}

// PurgeResult describes one retention purge. Failures are reported here,
// never returned as errors.
type PurgeResult struct {
	Success         bool      `json:"success"`
	DeletedCount    int64     `json:"deleted_count"`
	CutoffDate      time.Time `json:"cutoff_date"`
	RetentionMonths int       `json:"retention_months"`
	ErrorID         string    `json:"error_id,omitempty"`
	ErrorMessage    string    `json:"error,omitempty"`
}

// DeleteResult describes an operator-requested delete.
type DeleteResult struct {
	Success      bool       `json:"success"`
	DeletedCount int64      `json:"deleted_count"`
	SensorIDs    []string   `json:"sensor_ids,omitempty"`
	Start        *time.Time `json:"start_date,omitempty"`
	End          *time.Time `json:"end_date,omitempty"`
	ErrorID      string     `json:"error_id,omitempty"`
	ErrorMessage string     `json:"error,omitempty"`
}

// Stats summarizes stored readings against the retention policy.
type Stats struct {
	TotalRecords            int64      `json:"total_records"`
	OldestRecord            *time.Time `json:"oldest_record,omitempty"`
	NewestRecord            *time.Time `json:"newest_record,omitempty"`
	RecordsEligibleForPurge int64      `json:"records_eligible_for_purge"`
	ConfiguredMonths        int        `json:"configured_retention_months"`
	EffectiveMonths         int        `json:"effective_retention_months"`
	CutoffDate              time.Time  `json:"cutoff_date"`
}

// ConfigValidation reports problems with a configured retention period.
type ConfigValidation struct {
	ConfiguredMonths int      `json:"configured_months"`
	EffectiveMonths  int      `json:"effective_months"`
	Valid            bool     `json:"valid"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Engine deletes readings by age or by operator request
type Engine struct {
	readings repository.ReadingRepository
	recorder ErrorRecorder
	events   *nuts.EventEmitter
	now      func() time.Time
}

// New creates a new Engine
func New(readings repository.ReadingRepository, recorder ErrorRecorder) *Engine {
	return &Engine{
		readings: readings,
		recorder: recorder,
		events:   nuts.NewEventEmitter(),
		now:      time.Now,
	}
}

// PurgeOldReadings deletes readings older than the effective retention
// period. Counting and deletion share one transaction.
func (e *Engine) PurgeOldReadings(ctx context.Context, retentionMonths int) PurgeResult {
	months := EffectiveMonths(retentionMonths)
	if months != retentionMonths {
		nuts.L.Warnf("[Retention] Retention of %d months is below the %d month minimum, using %d", retentionMonths, MinRetentionMonths, months)
	}
	res := PurgeResult{
		CutoffDate:      Cutoff(e.now(), months),
		RetentionMonths: months,
	}

	deleted, err := e.deleteScope(ctx, models.ReadingScope{Before: &res.CutoffDate})
	if err != nil {
		res.ErrorID = e.record(ctx, err, "purging old readings")
		res.ErrorMessage = err.Error()
		return res
	}

	res.Success = true
	res.DeletedCount = deleted
	if deleted == 0 {
		nuts.L.Infof("[Retention] No readings older than %s", res.CutoffDate.Format(time.RFC3339))
		return res
	}
	nuts.L.Infof("[Retention] Purged %d readings older than %s", deleted, res.CutoffDate.Format(time.RFC3339))
	e.emit(EventPurged, deleted)
	return res
}

// DeleteBySensor deletes one sensor's readings, optionally limited to an
// inclusive time range.
func (e *Engine) DeleteBySensor(ctx context.Context, sensorID string, start, end *time.Time) DeleteResult {
	if sensorID == "" {
		return e.invalid(ctx, "sensor id is required")
	}
	if start != nil && end != nil && start.After(*end) {
		return e.invalid(ctx, "start date must not be after end date")
	}
	return e.delete(ctx, models.ReadingScope{SensorIDs: []string{sensorID}, Start: start, End: end}, "deleting sensor readings")
}

// DeleteByDateRange deletes readings in an inclusive time range, optionally
// limited to sensorIDs.
func (e *Engine) DeleteByDateRange(ctx context.Context, start, end time.Time, sensorIDs []string) DeleteResult {
	if start.After(end) {
		return e.invalid(ctx, "start date must not be after end date")
	}
	return e.delete(ctx, models.ReadingScope{SensorIDs: sensorIDs, Start: &start, End: &end}, "deleting readings by date range")
}

func (e *Engine) delete(ctx context.Context, scope models.ReadingScope, operation string) DeleteResult {
	res := DeleteResult{SensorIDs: scope.SensorIDs, Start: scope.Start, End: scope.End}
	deleted, err := e.deleteScope(ctx, scope)
	if err != nil {
		res.ErrorID = e.record(ctx, err, operation)
		res.ErrorMessage = err.Error()
		return res
	}
	res.Success = true
	res.DeletedCount = deleted
	nuts.L.Infof("[Retention] Deleted %d readings (sensors=%v start=%v end=%v)", deleted, scope.SensorIDs, scope.Start, scope.End)
	if deleted > 0 {
		e.emit(EventDeleted, deleted)
	}
	return res
}

func (e *Engine) invalid(ctx context.Context, msg string) DeleteResult {
	err := errors.NewValidationError(msg, nil)
	return DeleteResult{
		ErrorID:      e.record(ctx, err, "validating delete request"),
		ErrorMessage: err.Error(),
	}
}

// deleteScope counts then deletes inside one transaction, which is rolled
// back on any failure and always closed before this returns.
func (e *Engine) deleteScope(ctx context.Context, scope models.ReadingScope) (int64, error) {
	tx, err := e.readings.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	count, err := e.readings.CountTx(ctx, tx, scope)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, tx.Commit()
	}

	deleted, err := e.readings.DeleteTx(ctx, tx, scope)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.NewDatabaseError("failed to commit delete", err)
	}
	return deleted, nil
}

// Stats reads retention statistics without modifying anything.
func (e *Engine) Stats(ctx context.Context, retentionMonths int) (*Stats, error) {
	months := EffectiveMonths(retentionMonths)
	cutoff := Cutoff(e.now(), months)
	all := models.ReadingScope{}

	total, err := e.readings.Count(ctx, all)
	if err != nil {
		return nil, err
	}
	oldest, err := e.readings.Oldest(ctx, all)
	if err != nil {
		return nil, err
	}
	newest, err := e.readings.Newest(ctx, all)
	if err != nil {
		return nil, err
	}
	eligible, err := e.readings.Count(ctx, models.ReadingScope{Before: &cutoff})
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalRecords:            total,
		OldestRecord:            oldest,
		NewestRecord:            newest,
		RecordsEligibleForPurge: eligible,
		ConfiguredMonths:        retentionMonths,
		EffectiveMonths:         months,
		CutoffDate:              cutoff,
	}, nil
}

// SensorSummary describes the stored history of one sensor.
func (e *Engine) SensorSummary(ctx context.Context, sensorID string) (*models.SensorDataSummary, error) {
	scope := models.ReadingScope{SensorIDs: []string{sensorID}}
	total, err := e.readings.Count(ctx, scope)
	if err != nil {
		return nil, err
	}
	summary := &models.SensorDataSummary{SensorID: sensorID, TotalRecords: total}
	if total == 0 {
		return summary, nil
	}
	if summary.Oldest, err = e.readings.Oldest(ctx, scope); err != nil {
		return nil, err
	}
	if summary.Newest, err = e.readings.Newest(ctx, scope); err != nil {
		return nil, err
	}
	if summary.Oldest != nil && summary.Newest != nil {
		summary.DataSpanDays = int(summary.Newest.Sub(*summary.Oldest).Hours() / 24)
	}
	return summary, nil
}

// ValidateConfig checks a configured retention period and reports the value
// that will actually be used.
func ValidateConfig(months int) ConfigValidation {
	v := ConfigValidation{
		ConfiguredMonths: months,
		EffectiveMonths:  EffectiveMonths(months),
		Valid:            true,
	}
	if months < MinRetentionMonths {
		v.Valid = false
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("retention of %d months is below the %d month minimum; %d months will be used", months, MinRetentionMonths, MinRetentionMonths))
	}
	if months > longRetentionMonths {
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("retention of %d months is very long and may use significant storage", months))
	}
	return v
}

// OnDeletion registers a callback for purge and delete events. The callback
// receives the number of deleted readings.
func (e *Engine) OnDeletion(event, handlerID string, handler func(deleted int64)) {
	e.events.On(event, handlerID, handler)
}

func (e *Engine) emit(event string, deleted int64) {
	if err := e.events.Emit(event, deleted); err != nil {
		nuts.L.Warnf("[Retention] Failed to emit %s: %v", event, err)
	}
}

func (e *Engine) record(ctx context.Context, err error, operation string) string {
	if e.recorder == nil {
		nuts.L.Errorf("[Retention] %s failed: %v", operation, err)
		return ""
	}
	return e.recorder.Record(ctx, err, operation)
}
