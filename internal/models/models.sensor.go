// FilePath: internal/models/models.sensor.go
package models

import "fmt"

// SensorCategory groups sensors by what they monitor
type SensorCategory string

const (
	CategoryFreezer      SensorCategory = "freezer"
	CategoryRefrigerator SensorCategory = "refrigerator"
	CategoryAmbient      SensorCategory = "ambient"
	CategoryOther        SensorCategory = "other"
)

// Valid reports whether c is one of the known categories.
func (c SensorCategory) Valid() bool {
	switch c {
	case CategoryFreezer, CategoryRefrigerator, CategoryAmbient, CategoryOther:
		return true
	}
	return false
}

// Threshold defaults applied to sensors discovered by ingestion.
const (
	DefaultMinTemp     = 0.0
	DefaultMaxTemp     = 50.0
	DefaultMinHumidity = 0.0
	DefaultMaxHumidity = 100.0
)

type Sensor struct {
	SensorID    string          `json:"sensor_id" db:"sensor_id"`
	Name        string          `json:"name" db:"name"`
	Active      bool            `json:"active" db:"active"`
	MinTemp     float64         `json:"min_temp" db:"min_temp"`
	MaxTemp     float64         `json:"max_temp" db:"max_temp"`
	MinHumidity float64         `json:"min_humidity" db:"min_humidity"`
	MaxHumidity float64         `json:"max_humidity" db:"max_humidity"`
	Category    *SensorCategory `json:"category,omitempty" db:"category"`
}

// NewSensor returns a sensor with the default thresholds. An empty name
// becomes "Sensor <id>".
func NewSensor(sensorID, name string, active bool) *Sensor {
	if name == "" {
		name = DefaultSensorName(sensorID)
	}
	return &Sensor{
		SensorID:    sensorID,
		Name:        name,
		Active:      active,
		MinTemp:     DefaultMinTemp,
		MaxTemp:     DefaultMaxTemp,
		MinHumidity: DefaultMinHumidity,
		MaxHumidity: DefaultMaxHumidity,
	}
}

// DefaultSensorName is used when the upstream metadata has no name.
func DefaultSensorName(sensorID string) string {
	return fmt.Sprintf("Sensor %s", sensorID)
}

// Validate checks operator edits.
func (s *Sensor) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("sensor name is required")
	}
	if s.MinTemp > s.MaxTemp {
		return fmt.Errorf("min_temp %.2f is above max_temp %.2f", s.MinTemp, s.MaxTemp)
	}
	if s.MinHumidity > s.MaxHumidity {
		return fmt.Errorf("min_humidity %.2f is above max_humidity %.2f", s.MinHumidity, s.MaxHumidity)
	}
	if s.Category != nil && !s.Category.Valid() {
		return fmt.Errorf("unknown category %q", *s.Category)
	}
	return nil
}

// BreachType classifies a threshold violation
type BreachType string

const (
	BreachNone     BreachType = ""
	BreachWarning  BreachType = "warning"
	BreachCritical BreachType = "critical"
)

// ThresholdBreach describes how a reading compares with a sensor's limits.
type ThresholdBreach struct {
	TemperatureLow  bool       `json:"temperature_low"`
	TemperatureHigh bool       `json:"temperature_high"`
	HumidityLow     bool       `json:"humidity_low"`
	HumidityHigh    bool       `json:"humidity_high"`
	HasBreach       bool       `json:"has_breach"`
	BreachType      BreachType `json:"breach_type,omitempty"`
}

// CheckThresholds compares r with the sensor limits. Any high value is
// critical; only-low breaches are warnings.
func (s *Sensor) CheckThresholds(r *SensorReading) ThresholdBreach {
	b := ThresholdBreach{
		TemperatureLow:  r.Temperature < s.MinTemp,
		TemperatureHigh: r.Temperature > s.MaxTemp,
		HumidityLow:     r.Humidity < s.MinHumidity,
		HumidityHigh:    r.Humidity > s.MaxHumidity,
	}
	b.HasBreach = b.TemperatureLow || b.TemperatureHigh || b.HumidityLow || b.HumidityHigh
	switch {
	case b.TemperatureHigh || b.HumidityHigh:
		b.BreachType = BreachCritical
	case b.HasBreach:
		b.BreachType = BreachWarning
	}
	return b
}
