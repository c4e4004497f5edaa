package sqlstore

import (
	"context"

	"github.com/bakerysensors/hub/internal/database"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/models"
	"github.com/jmoiron/sqlx"
	nuts "github.com/vaudience/go-nuts"
)

const sensorColumns = `sensor_id, name, active, min_temp, max_temp, min_humidity, max_humidity, category`

type SensorRepo struct {
	BaseRepo
}

func NewSensorRepository(db database.DB) *SensorRepo {
	return &SensorRepo{BaseRepo: BaseRepo{db: db}}
}

func (r *SensorRepo) Get(ctx context.Context, sensorID string) (*models.Sensor, error) {
	return r.get(ctx, r.conn(), sensorID)
}

func (r *SensorRepo) GetTx(ctx context.Context, tx database.Transaction, sensorID string) (*models.Sensor, error) {
	return r.get(ctx, tx, sensorID)
}

func (r *SensorRepo) get(ctx context.Context, q sqlx.QueryerContext, sensorID string) (*models.Sensor, error) {
	sensor := &models.Sensor{}
	query := r.conn().Rebind(`SELECT ` + sensorColumns + ` FROM sensors WHERE sensor_id = ?`)

	err := sqlx.GetContext(ctx, q, sensor, query, sensorID)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NewNotFoundError("sensor not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get sensor", err)
	}
	return sensor, nil
}

func (r *SensorRepo) List(ctx context.Context, filters models.SensorFilters) ([]*models.Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors WHERE 1=1`
	args := []interface{}{}
	if filters.Active != nil {
		query += ` AND active = ?`
		args = append(args, *filters.Active)
	}
	if filters.Category != nil {
		query += ` AND category = ?`
		args = append(args, string(*filters.Category))
	}
	query += ` ORDER BY name, sensor_id`

	sensors := []*models.Sensor{}
	if err := r.conn().SelectContext(ctx, &sensors, r.conn().Rebind(query), args...); err != nil {
		return nil, errors.NewDatabaseError("failed to list sensors", err)
	}
	return sensors, nil
}

func (r *SensorRepo) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT sensor_id FROM sensors WHERE sensor_id IN (?)`, ids)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to build sensor lookup", err)
	}

	var known []string
	if err := r.conn().SelectContext(ctx, &known, r.conn().Rebind(query), args...); err != nil {
		return nil, errors.NewDatabaseError("failed to look up sensors", err)
	}

	seen := make(map[string]bool, len(known))
	for _, id := range known {
		seen[id] = true
	}
	var missing []string
	for _, id := range ids {
		if !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	return missing, nil
}

func (r *SensorRepo) CreateTx(ctx context.Context, tx database.Transaction, sensor *models.Sensor) error {
	query := `
		INSERT INTO sensors (` + sensorColumns + `)
		VALUES (:sensor_id, :name, :active, :min_temp, :max_temp, :min_humidity, :max_humidity, :category)`

	if _, err := sqlx.NamedExecContext(ctx, tx, query, sensor); err != nil {
		return errors.NewDatabaseError("failed to create sensor", err)
	}
	nuts.L.Debugf("[SensorRepo] Created sensor %s (%s)", sensor.SensorID, sensor.Name)
	return nil
}

func (r *SensorRepo) SetActiveTx(ctx context.Context, tx database.Transaction, sensorID string, active bool) error {
	query := tx.Rebind(`UPDATE sensors SET active = ? WHERE sensor_id = ?`)

	result, err := tx.ExecContext(ctx, query, active, sensorID)
	if err != nil {
		return errors.NewDatabaseError("failed to update sensor status", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("sensor not found", nil)
	}
	return nil
}

func (r *SensorRepo) Update(ctx context.Context, sensor *models.Sensor) error {
	query := `
		UPDATE sensors SET
			name = :name,
			active = :active,
			min_temp = :min_temp,
			max_temp = :max_temp,
			min_humidity = :min_humidity,
			max_humidity = :max_humidity,
			category = :category
		WHERE sensor_id = :sensor_id`

	result, err := r.conn().NamedExecContext(ctx, query, sensor)
	if err != nil {
		return errors.NewDatabaseError("failed to update sensor", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("sensor not found", nil)
	}
	return nil
}
