package sqlstore

import (
	"context"
	"time"

	"github.com/bakerysensors/hub/internal/database"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/models"
	"github.com/jmoiron/sqlx"
)

const readingColumns = `id, sensor_id, timestamp, temperature, humidity, battery_voltage`

type ReadingRepo struct {
	BaseRepo
}

func NewReadingRepository(db database.DB) *ReadingRepo {
	return &ReadingRepo{BaseRepo: BaseRepo{db: db}}
}

func (r *ReadingRepo) List(ctx context.Context, filters models.ReadingFilters) ([]models.SensorReading, error) {
	query := `SELECT ` + readingColumns + ` FROM sensor_readings WHERE sensor_id = ?`
	args := []interface{}{filters.SensorID}
	if !filters.Start.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, filters.Start.UTC())
	}
	if !filters.End.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, filters.End.UTC())
	}
	query += ` ORDER BY timestamp DESC`
	if filters.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filters.Limit)
	}

	readings := []models.SensorReading{}
	if err := r.conn().SelectContext(ctx, &readings, r.conn().Rebind(query), args...); err != nil {
		return nil, errors.NewDatabaseError("failed to get sensor readings", err)
	}
	return readings, nil
}

func (r *ReadingRepo) Latest(ctx context.Context, sensorID string) (*models.SensorReading, error) {
	reading := &models.SensorReading{}
	query := r.conn().Rebind(`
		SELECT ` + readingColumns + `
		FROM sensor_readings
		WHERE sensor_id = ?
		ORDER BY timestamp DESC
		LIMIT 1`)

	if err := r.conn().GetContext(ctx, reading, query, sensorID); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NewNotFoundError("no readings for sensor", err)
		}
		return nil, errors.NewDatabaseError("failed to get latest reading", err)
	}
	return reading, nil
}

func (r *ReadingRepo) Count(ctx context.Context, scope models.ReadingScope) (int64, error) {
	return r.count(ctx, r.conn(), scope)
}

func (r *ReadingRepo) CountTx(ctx context.Context, tx database.Transaction, scope models.ReadingScope) (int64, error) {
	return r.count(ctx, tx, scope)
}

func (r *ReadingRepo) count(ctx context.Context, q sqlx.QueryerContext, scope models.ReadingScope) (int64, error) {
	where, args, err := scopeClause(scope)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to build reading scope", err)
	}

	var n int64
	query := r.conn().Rebind(`SELECT COUNT(*) FROM sensor_readings` + where)
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return 0, errors.NewDatabaseError("failed to count sensor readings", err)
	}
	return n, nil
}

// Oldest uses ORDER BY rather than MIN so the driver returns a typed
// timestamp on every engine.
func (r *ReadingRepo) Oldest(ctx context.Context, scope models.ReadingScope) (*time.Time, error) {
	return r.edge(ctx, scope, "ASC")
}

func (r *ReadingRepo) Newest(ctx context.Context, scope models.ReadingScope) (*time.Time, error) {
	return r.edge(ctx, scope, "DESC")
}

func (r *ReadingRepo) edge(ctx context.Context, scope models.ReadingScope, order string) (*time.Time, error) {
	where, args, err := scopeClause(scope)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to build reading scope", err)
	}

	var ts time.Time
	query := r.conn().Rebind(`SELECT timestamp FROM sensor_readings` + where + ` ORDER BY timestamp ` + order + ` LIMIT 1`)
	if err := r.conn().GetContext(ctx, &ts, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, errors.NewDatabaseError("failed to get reading timestamp", err)
	}
	return utcPtr(ts), nil
}

func (r *ReadingRepo) ExistsTx(ctx context.Context, tx database.Transaction, sensorID string, ts time.Time) (bool, error) {
	var n int
	query := tx.Rebind(`SELECT COUNT(*) FROM sensor_readings WHERE sensor_id = ? AND timestamp = ?`)
	if err := tx.GetContext(ctx, &n, query, sensorID, ts.UTC()); err != nil {
		return false, errors.NewDatabaseError("failed to check for existing reading", err)
	}
	return n > 0, nil
}

func (r *ReadingRepo) InsertTx(ctx context.Context, tx database.Transaction, reading *models.SensorReading) error {
	query := tx.Rebind(`
		INSERT INTO sensor_readings (sensor_id, timestamp, temperature, humidity, battery_voltage)
		VALUES (?, ?, ?, ?, ?)`)

	_, err := tx.ExecContext(ctx, query,
		reading.SensorID, reading.Timestamp.UTC(), reading.Temperature, reading.Humidity, reading.BatteryVoltage)
	if err != nil {
		return errors.NewDatabaseError("failed to insert sensor reading", err)
	}
	return nil
}

func (r *ReadingRepo) DeleteTx(ctx context.Context, tx database.Transaction, scope models.ReadingScope) (int64, error) {
	where, args, err := scopeClause(scope)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to build reading scope", err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM sensor_readings`+where), args...)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to delete sensor readings", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("failed to get rows affected", err)
	}
	return rows, nil
}
