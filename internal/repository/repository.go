// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/bakerysensors/hub/internal/database"
	"github.com/bakerysensors/hub/internal/models"
)

// SensorRepository defines the interface for sensor operations
type SensorRepository interface {
	database.Repository
	Get(ctx context.Context, sensorID string) (*models.Sensor, error)
	List(ctx context.Context, filters models.SensorFilters) ([]*models.Sensor, error)
	Update(ctx context.Context, sensor *models.Sensor) error
	// MissingIDs returns the subset of ids that have no sensor row.
	MissingIDs(ctx context.Context, ids []string) ([]string, error)

	GetTx(ctx context.Context, tx database.Transaction, sensorID string) (*models.Sensor, error)
	CreateTx(ctx context.Context, tx database.Transaction, sensor *models.Sensor) error
	SetActiveTx(ctx context.Context, tx database.Transaction, sensorID string, active bool) error
}

// ReadingRepository defines the interface for sensor measurements
type ReadingRepository interface {
	database.Repository
	List(ctx context.Context, filters models.ReadingFilters) ([]models.SensorReading, error)
	Latest(ctx context.Context, sensorID string) (*models.SensorReading, error)
	Count(ctx context.Context, scope models.ReadingScope) (int64, error)
	// Oldest and Newest return nil when the scope is empty.
	Oldest(ctx context.Context, scope models.ReadingScope) (*time.Time, error)
	Newest(ctx context.Context, scope models.ReadingScope) (*time.Time, error)

	ExistsTx(ctx context.Context, tx database.Transaction, sensorID string, ts time.Time) (bool, error)
	InsertTx(ctx context.Context, tx database.Transaction, reading *models.SensorReading) error
	CountTx(ctx context.Context, tx database.Transaction, scope models.ReadingScope) (int64, error)
	DeleteTx(ctx context.Context, tx database.Transaction, scope models.ReadingScope) (int64, error)
}

// SettingsRepository persists key/value settings
type SettingsRepository interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
	List(ctx context.Context) ([]models.Setting, error)
}

// ErrorLogRepository stores errors caught at job and service boundaries
type ErrorLogRepository interface {
	Insert(ctx context.Context, record *models.ErrorRecord) error
	ListRecent(ctx context.Context, limit int) ([]models.ErrorRecord, error)
}
