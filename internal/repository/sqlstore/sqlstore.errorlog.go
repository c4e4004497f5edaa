package sqlstore

import (
	"context"

	"github.com/bakerysensors/hub/internal/database"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/models"
)

type ErrorLogRepo struct {
	BaseRepo
}

func NewErrorLogRepository(db database.DB) *ErrorLogRepo {
	return &ErrorLogRepo{BaseRepo: BaseRepo{db: db}}
}

func (r *ErrorLogRepo) Insert(ctx context.Context, record *models.ErrorRecord) error {
	query := `
		INSERT INTO error_log (error_id, occurred_at, level, operation, message)
		VALUES (:error_id, :occurred_at, :level, :operation, :message)`

	record.OccurredAt = record.OccurredAt.UTC()
	if _, err := r.conn().NamedExecContext(ctx, query, record); err != nil {
		return errors.NewDatabaseError("failed to store error record", err)
	}
	return nil
}

func (r *ErrorLogRepo) ListRecent(ctx context.Context, limit int) ([]models.ErrorRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	records := []models.ErrorRecord{}
	query := r.conn().Rebind(`
		SELECT id, error_id, occurred_at, level, operation, message
		FROM error_log
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?`)

	if err := r.conn().SelectContext(ctx, &records, query, limit); err != nil {
		return nil, errors.NewDatabaseError("failed to list error records", err)
	}
	return records, nil
}
