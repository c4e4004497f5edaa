// FilePath: internal/models/models.sensor_data.go
package models

import "time"

// SensorReading represents a single measurement. (SensorID, Timestamp) is
// unique within the store.
type SensorReading struct {
	ID             int64     `json:"id" db:"id"`
	SensorID       string    `json:"sensor_id" db:"sensor_id"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	Temperature    float64   `json:"temperature" db:"temperature"`
	Humidity       float64   `json:"humidity" db:"humidity"`
	BatteryVoltage *float64  `json:"battery_voltage,omitempty" db:"battery_voltage"`
}

// ReadingWithBreach is a reading annotated with its sensor's threshold check
type ReadingWithBreach struct {
	SensorReading
	Breach ThresholdBreach `json:"breach"`
}

// SensorDataSummary describes the stored history of one sensor
type SensorDataSummary struct {
	SensorID     string     `json:"sensor_id"`
	TotalRecords int64      `json:"total_records"`
	Oldest       *time.Time `json:"oldest_record,omitempty"`
	Newest       *time.Time `json:"newest_record,omitempty"`
	DataSpanDays int        `json:"data_span_days"`
}

// Setting is a persisted key/value pair
type Setting struct {
	Key         string    `json:"key" db:"setting_key"`
	Value       string    `json:"value" db:"setting_value"`
	Description *string   `json:"description,omitempty" db:"description"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ErrorRecord is an error caught at a job or service boundary
type ErrorRecord struct {
	ID         int64     `json:"id" db:"id"`
	ErrorID    string    `json:"error_id" db:"error_id"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
	Level      string    `json:"level" db:"level"`
	Operation  string    `json:"operation" db:"operation"`
	Message    string    `json:"message" db:"message"`
}
