package models

import "time"

// SensorFilters defines the available filter options for sensors
type SensorFilters struct {
	Active   *bool           `schema:"active"`
	Category *SensorCategory `schema:"category"`
}

// ReadingFilters selects readings for one sensor. Zero times are unbounded.
type ReadingFilters struct {
	SensorID string    `schema:"-"`
	Start    time.Time `schema:"start"`
	End      time.Time `schema:"end"`
	Limit    int       `schema:"limit"`
}

// ReadingScope selects readings for counting or deletion. Bounds are
// inclusive; nil bounds and an empty SensorIDs list are unbounded. Before is
// exclusive.
type ReadingScope struct {
	SensorIDs []string
	Start     *time.Time
	End       *time.Time
	Before    *time.Time
}
