package monitoring

import (
	"context"
	"strings"
	"time"

	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/models"
	"github.com/bakerysensors/hub/internal/repository"
	"github.com/google/uuid"
	nuts "github.com/vaudience/go-nuts"
)

const (
	LevelWarning = "WARNING"
	LevelError   = "ERROR"

	persistTimeout = 5 * time.Second
)

// NewErrorID returns a short correlation ID such as "ERR-1A2B3C4D".
func NewErrorID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ERR-" + strings.ToUpper(hex[:8])
}

// Service provides monitoring functionality
type Service struct {
	errorLog repository.ErrorLogRepository
}

// NewService creates a new monitoring service. A nil errorLog only logs.
func NewService(errorLog repository.ErrorLogRepository) *Service {
	return &Service{
		errorLog: errorLog,
	}
}

// Record assigns err a correlation ID, logs it with the operation that failed
// and stores it in the error log. The ID is returned for inclusion in results.
// Record must not be called while a SQLite transaction is open on the caller's
// path; it writes through its own connection.
func (s *Service) Record(ctx context.Context, err error, operation string) string {
	id := NewErrorID()
	level := LevelError
	if errors.IsTransient(err) {
		level = LevelWarning
		nuts.L.Warnf("[Monitoring] %s in %s: %v", id, operation, err)
	} else {
		nuts.L.Errorf("[Monitoring] %s in %s: %v", id, operation, err)
	}

	if s == nil || s.errorLog == nil {
		return id
	}

	// detach from a caller context that may already be cancelled
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	rec := &models.ErrorRecord{
		ErrorID:    id,
		OccurredAt: time.Now().UTC(),
		Level:      level,
		Operation:  operation,
		Message:    err.Error(),
	}
	if perr := s.errorLog.Insert(pctx, rec); perr != nil {
		nuts.L.Warnf("[Monitoring] Failed to store %s: %v", id, perr)
	}
	return id
}

// RecentErrors lists the newest stored error records.
func (s *Service) RecentErrors(ctx context.Context, limit int) ([]models.ErrorRecord, error) {
	if s == nil || s.errorLog == nil {
		return []models.ErrorRecord{}, nil
	}
	return s.errorLog.ListRecent(ctx, limit)
}

// RecordEvent records a monitored event with labels
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	nuts.L.Infof("[Monitoring] Event %s recorded at %s with labels: %v", eventName, time.Now().UTC().Format(time.RFC3339), labels)
}
