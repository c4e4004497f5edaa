// Package ingest turns SensorPush payloads into stored sensors and readings.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bakerysensors/hub/internal/database"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/models"
	"github.com/bakerysensors/hub/internal/monitoring"
	"github.com/bakerysensors/hub/internal/repository"
	"github.com/bakerysensors/hub/internal/sensorpush"
	nuts "github.com/vaudience/go-nuts"
)

// Result counts what one processing call did.
type Result struct {
	New            int `json:"new_readings"`
	Duplicates     int `json:"duplicate_readings"`
	Skipped        int `json:"skipped_readings"`
	SensorsCreated int `json:"sensors_created"`
	SensorsUpdated int `json:"sensors_updated"`
}

// Processor stores samples and status payloads. Each call runs in a single
// transaction; the (sensor_id, timestamp) existence check before every
// insert is what makes repeated calls with the same payload harmless.
type Processor struct {
	sensors  repository.SensorRepository
	readings repository.ReadingRepository
	names    NameResolver
}

func NewProcessor(sensors repository.SensorRepository, readings repository.ReadingRepository, names NameResolver) *Processor {
	return &Processor{
		sensors:  sensors,
		readings: readings,
		names:    names,
	}
}

// ProcessSamples stores every well-formed sample. Malformed entries are
// logged and skipped; storage failures roll back the whole call.
func (p *Processor) ProcessSamples(ctx context.Context, payload *sensorpush.SamplesPayload) (Result, error) {
	var res Result
	if payload == nil || len(payload.Sensors) == 0 {
		nuts.L.Infof("[Ingest] No sensor samples to process")
		return res, nil
	}

	ids := sortedKeys(payload.Sensors)
	names, err := p.namesForUnknown(ctx, ids)
	if err != nil {
		return res, err
	}

	tx, err := p.readings.BeginTx(ctx)
	if err != nil {
		return res, err
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	for _, sensorID := range ids {
		var entries []json.RawMessage
		if err := json.Unmarshal(payload.Sensors[sensorID], &entries); err != nil {
			nuts.L.Warnf("[Ingest] %s invalid samples format for sensor %s: %v", monitoring.NewErrorID(), sensorID, err)
			continue
		}

		created, err := p.ensureSensor(ctx, tx, sensorID, names[sensorID], true)
		if err != nil {
			return res, err
		}
		if created {
			res.SensorsCreated++
		}

		for _, raw := range entries {
			reading, err := parseSample(sensorID, raw)
			if err != nil {
				nuts.L.Warnf("[Ingest] %s skipping sample for sensor %s: %v", monitoring.NewErrorID(), sensorID, err)
				res.Skipped++
				continue
			}
			inserted, err := p.insertIfNew(ctx, tx, reading)
			if err != nil {
				return res, err
			}
			if inserted {
				res.New++
			} else {
				res.Duplicates++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return res, errors.NewDatabaseError("failed to commit samples", err)
	}

	nuts.L.Infof("[Ingest] Samples processed: %d new, %d duplicates, %d skipped, %d sensors created",
		res.New, res.Duplicates, res.Skipped, res.SensorsCreated)
	return res, nil
}

// ProcessStatus reconciles each sensor's active flag and stores the current
// reading when it carries temperature, humidity and a timestamp.
func (p *Processor) ProcessStatus(ctx context.Context, payload *sensorpush.StatusPayload) (Result, error) {
	var res Result
	if payload == nil || len(payload.Sensors) == 0 {
		nuts.L.Infof("[Ingest] No sensor status to process")
		return res, nil
	}

	ids := sortedKeys(payload.Sensors)
	names, err := p.namesForUnknown(ctx, ids)
	if err != nil {
		return res, err
	}

	tx, err := p.readings.BeginTx(ctx)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	for _, sensorID := range ids {
		var status sensorpush.SensorStatus
		if err := json.Unmarshal(payload.Sensors[sensorID], &status); err != nil {
			nuts.L.Warnf("[Ingest] %s invalid status format for sensor %s: %v", monitoring.NewErrorID(), sensorID, err)
			continue
		}
		active := status.Active()

		sensor, err := p.sensors.GetTx(ctx, tx, sensorID)
		switch {
		case errors.IsNotFound(err):
			if err := p.sensors.CreateTx(ctx, tx, models.NewSensor(sensorID, names[sensorID], active)); err != nil {
				return res, err
			}
			res.SensorsCreated++
		case err != nil:
			return res, err
		case sensor.Active != active:
			if err := p.sensors.SetActiveTx(ctx, tx, sensorID, active); err != nil {
				return res, err
			}
			res.SensorsUpdated++
			nuts.L.Infof("[Ingest] Sensor %s active=%t", sensorID, active)
		}

		if status.Temperature == nil || status.Humidity == nil {
			continue
		}
		tsRaw := status.Timestamp
		if len(tsRaw) == 0 {
			tsRaw = payload.Timestamp
		}
		ts, ok, err := sensorpush.ParseTimestamp(tsRaw)
		if err != nil {
			nuts.L.Warnf("[Ingest] %s skipping status reading for sensor %s: %v", monitoring.NewErrorID(), sensorID, err)
			res.Skipped++
			continue
		}
		if !ok {
			continue
		}

		inserted, err := p.insertIfNew(ctx, tx, &models.SensorReading{
			SensorID:       sensorID,
			Timestamp:      ts,
			Temperature:    *status.Temperature,
			Humidity:       *status.Humidity,
			BatteryVoltage: status.Battery,
		})
		if err != nil {
			return res, err
		}
		if inserted {
			res.New++
		} else {
			res.Duplicates++
		}
	}

	if err := tx.Commit(); err != nil {
		return res, errors.NewDatabaseError("failed to commit status", err)
	}

	nuts.L.Infof("[Ingest] Status processed: %d new, %d duplicates, %d sensors created, %d updated",
		res.New, res.Duplicates, res.SensorsCreated, res.SensorsUpdated)
	return res, nil
}

// namesForUnknown resolves names for sensors not stored yet. It runs before
// any transaction is opened because it may call the network.
func (p *Processor) namesForUnknown(ctx context.Context, ids []string) (map[string]string, error) {
	missing, err := p.sensors.MissingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 || p.names == nil {
		return map[string]string{}, nil
	}
	return p.names.Resolve(ctx, missing), nil
}

func (p *Processor) ensureSensor(ctx context.Context, tx database.Transaction, sensorID, name string, active bool) (bool, error) {
	_, err := p.sensors.GetTx(ctx, tx, sensorID)
	if err == nil {
		return false, nil
	}
	if !errors.IsNotFound(err) {
		return false, err
	}
	if err := p.sensors.CreateTx(ctx, tx, models.NewSensor(sensorID, name, active)); err != nil {
		return false, err
	}
	nuts.L.Infof("[Ingest] Created sensor %s", sensorID)
	return true, nil
}

func (p *Processor) insertIfNew(ctx context.Context, tx database.Transaction, r *models.SensorReading) (bool, error) {
	exists, err := p.readings.ExistsTx(ctx, tx, r.SensorID, r.Timestamp)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := p.readings.InsertTx(ctx, tx, r); err != nil {
		return false, err
	}
	return true, nil
}

func parseSample(sensorID string, raw json.RawMessage) (*models.SensorReading, error) {
	var s sensorpush.Sample
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.NewDataError("malformed sample", err)
	}
	if s.Observed == "" || s.Temperature == nil || s.Humidity == nil {
		return nil, errors.NewDataError(fmt.Sprintf("incomplete sample %s", raw), nil)
	}
	ts, err := sensorpush.ParseObserved(s.Observed)
	if err != nil {
		return nil, errors.NewDataError("invalid observed timestamp", err)
	}
	return &models.SensorReading{
		SensorID:       sensorID,
		Timestamp:      ts,
		Temperature:    *s.Temperature,
		Humidity:       *s.Humidity,
		BatteryVoltage: s.BatteryVoltage,
	}, nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
