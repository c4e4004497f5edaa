package sqlstore

import (
	"context"
	"time"

	"github.com/bakerysensors/hub/internal/database"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/models"
)

type SettingsRepo struct {
	BaseRepo
}

func NewSettingsRepository(db database.DB) *SettingsRepo {
	return &SettingsRepo{BaseRepo: BaseRepo{db: db}}
}

func (r *SettingsRepo) Get(ctx context.Context, key string) (*models.Setting, error) {
	setting := &models.Setting{}
	query := r.conn().Rebind(`
		SELECT setting_key, setting_value, description, updated_at
		FROM settings WHERE setting_key = ?`)

	if err := r.conn().GetContext(ctx, setting, query, key); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NewNotFoundError("setting not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get setting", err)
	}
	return setting, nil
}

// Upsert relies on ON CONFLICT, available in PostgreSQL 9.5+ and SQLite 3.24+.
// A nil description keeps the stored one.
func (r *SettingsRepo) Upsert(ctx context.Context, setting *models.Setting) error {
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO settings (setting_key, setting_value, description, updated_at)
		VALUES (:setting_key, :setting_value, :description, :updated_at)
		ON CONFLICT (setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			description = COALESCE(excluded.description, settings.description),
			updated_at = excluded.updated_at`

	if _, err := r.conn().NamedExecContext(ctx, query, setting); err != nil {
		return errors.NewDatabaseError("failed to save setting", err)
	}
	return nil
}

func (r *SettingsRepo) List(ctx context.Context) ([]models.Setting, error) {
	settings := []models.Setting{}
	query := `SELECT setting_key, setting_value, description, updated_at FROM settings ORDER BY setting_key`
	if err := r.conn().SelectContext(ctx, &settings, query); err != nil {
		return nil, errors.NewDatabaseError("failed to list settings", err)
	}
	return settings, nil
}
