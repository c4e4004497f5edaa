package hubservice

import (
	"context"

	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// SensorUpdate carries operator edits. Nil fields are left unchanged.
type SensorUpdate struct {
	Name        *string                `json:"name,omitempty"`
	Active      *bool                  `json:"active,omitempty"`
	MinTemp     *float64               `json:"min_temp,omitempty"`
	MaxTemp     *float64               `json:"max_temp,omitempty"`
	MinHumidity *float64               `json:"min_humidity,omitempty"`
	MaxHumidity *float64               `json:"max_humidity,omitempty"`
	Category    *models.SensorCategory `json:"category,omitempty"`
}

// SensorOverview pairs a sensor with its latest reading.
type SensorOverview struct {
	Sensor  *models.Sensor            `json:"sensor"`
	Latest  *models.ReadingWithBreach `json:"latest_reading,omitempty"`
	Summary *models.SensorDataSummary `json:"summary,omitempty"`
}

// UpdateSensor applies operator edits after validating them.
func (s *HubService) UpdateSensor(ctx context.Context, sensorID string, upd SensorUpdate) (*models.Sensor, error) {
	sensor, err := s.Sensors.Get(ctx, sensorID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		sensor.Name = *upd.Name
	}
	if upd.Active != nil {
		sensor.Active = *upd.Active
	}
	if upd.MinTemp != nil {
		sensor.MinTemp = *upd.MinTemp
	}
	if upd.MaxTemp != nil {
		sensor.MaxTemp = *upd.MaxTemp
	}
	if upd.MinHumidity != nil {
		sensor.MinHumidity = *upd.MinHumidity
	}
	if upd.MaxHumidity != nil {
		sensor.MaxHumidity = *upd.MaxHumidity
	}
	if upd.Category != nil {
		if *upd.Category == "" {
			sensor.Category = nil
		} else {
			sensor.Category = upd.Category
		}
	}

	if err := sensor.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error(), err)
	}
	if err := s.Sensors.Update(ctx, sensor); err != nil {
		return nil, err
	}
	nuts.L.Infof("[HubService] Sensor %s settings updated", sensorID)
	return sensor, nil
}

// LatestReading returns the newest reading of a sensor with its threshold check.
func (s *HubService) LatestReading(ctx context.Context, sensorID string) (*models.ReadingWithBreach, error) {
	sensor, err := s.Sensors.Get(ctx, sensorID)
	if err != nil {
		return nil, err
	}
	reading, err := s.Readings.Latest(ctx, sensorID)
	if err != nil {
		return nil, err
	}
	return &models.ReadingWithBreach{
		SensorReading: *reading,
		Breach:        sensor.CheckThresholds(reading),
	}, nil
}

// SensorOverview collects a sensor, its latest reading and its history summary.
func (s *HubService) SensorOverview(ctx context.Context, sensorID string) (*SensorOverview, error) {
	sensor, err := s.Sensors.Get(ctx, sensorID)
	if err != nil {
		return nil, err
	}
	overview := &SensorOverview{Sensor: sensor}

	latest, err := s.LatestReading(ctx, sensorID)
	switch {
	case err == nil:
		overview.Latest = latest
	case !errors.IsNotFound(err):
		return nil, err
	}

	if overview.Summary, err = s.Retention.SensorSummary(ctx, sensorID); err != nil {
		return nil, err
	}
	return overview, nil
}
