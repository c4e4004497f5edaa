package sensorpush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SamplesQuery narrows a samples request. Zero values are omitted.
type SamplesQuery struct {
	Limit     int       `json:"limit,omitempty"`
	StartTime string    `json:"startTime,omitempty"`
	EndTime   string    `json:"endTime,omitempty"`
	Sensors   []string  `json:"sensors,omitempty"`
	Since     time.Time `json:"-"`
}

// SamplesPayload is the /samples response. Per-sensor lists stay raw so one
// malformed list does not reject the whole payload.
type SamplesPayload struct {
	LastTime     string                     `json:"last_time,omitempty"`
	TotalSamples int                        `json:"total_samples,omitempty"`
	Truncated    bool                       `json:"truncated,omitempty"`
	Sensors      map[string]json.RawMessage `json:"sensors"`
}

// Sample is one entry of a sensor's sample list. Missing fields stay nil.
type Sample struct {
	Observed       string   `json:"observed"`
	Temperature    *float64 `json:"temperature"`
	Humidity       *float64 `json:"humidity"`
	BatteryVoltage *float64 `json:"battery_voltage,omitempty"`
}

// StatusPayload is the /status response.
type StatusPayload struct {
	Sensors          map[string]json.RawMessage `json:"sensors"`
	GatewayConnected bool                       `json:"gateway_connected"`
	Timestamp        json.RawMessage            `json:"timestamp,omitempty"`
}

// SensorStatus is one sensor entry of a status payload.
type SensorStatus struct {
	Temperature    *float64        `json:"temperature"`
	Humidity       *float64        `json:"humidity"`
	Battery        *float64        `json:"battery"`
	SignalStrength *float64        `json:"signal_strength"`
	Status         string          `json:"status"`
	Timestamp      json.RawMessage `json:"timestamp,omitempty"`
}

// Active reports whether the upstream status marks the sensor active.
func (s SensorStatus) Active() bool {
	return strings.EqualFold(strings.TrimSpace(s.Status), "active")
}

// SensorMetadata is one entry of the /sensors response.
type SensorMetadata struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Active   bool    `json:"active"`
	DeviceID string  `json:"deviceId,omitempty"`
	Address  string  `json:"address,omitempty"`
	Type     string  `json:"type,omitempty"`
	Battery  float64 `json:"battery_voltage,omitempty"`
}

// Samples fetches recent samples for all sensors, or the ones in q.
func (c *Client) Samples(ctx context.Context, q SamplesQuery) (*SamplesPayload, error) {
	if !q.Since.IsZero() && q.StartTime == "" {
		q.StartTime = q.Since.UTC().Format(time.RFC3339)
	}
	var payload SamplesPayload
	if err := c.getJSON(ctx, http.MethodPost, "/samples", q, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Status fetches the current status of every sensor.
func (c *Client) Status(ctx context.Context) (*StatusPayload, error) {
	var payload StatusPayload
	if err := c.getJSON(ctx, http.MethodGet, "/status", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SensorMetadata fetches the account's sensors keyed by sensor ID.
func (c *Client) SensorMetadata(ctx context.Context) (map[string]SensorMetadata, error) {
	raw := map[string]SensorMetadata{}
	if err := c.getJSON(ctx, http.MethodGet, "/sensors", nil, &raw); err != nil {
		return nil, err
	}
	for id, m := range raw {
		if m.ID == "" {
			m.ID = id
			raw[id] = m
		}
	}
	return raw, nil
}

// ParseObserved parses an ISO-8601 sample timestamp into UTC. A timestamp
// without an offset is taken as UTC.
func ParseObserved(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseTimestamp accepts either Unix epoch seconds (number or numeric
// string) or an ISO-8601 string. ok is false when raw is absent or null.
func ParseTimestamp(raw json.RawMessage) (t time.Time, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false, nil
	}

	var num json.Number
	if raw[0] != '"' {
		if err := json.Unmarshal(raw, &num); err != nil {
			return time.Time{}, false, fmt.Errorf("invalid timestamp %s: %w", raw, err)
		}
		t, err := fromEpoch(num.String())
		return t, err == nil, err
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false, fmt.Errorf("invalid timestamp %s: %w", raw, err)
	}
	if s == "" {
		return time.Time{}, false, nil
	}
	if _, numErr := strconv.ParseFloat(s, 64); numErr == nil {
		t, err := fromEpoch(s)
		return t, err == nil, err
	}
	t, err = ParseObserved(s)
	return t, err == nil, err
}

// fromEpoch parses decimal epoch seconds from their text so a fractional
// part maps to the same instant as the equivalent ISO-8601 timestamp.
func fromEpoch(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid epoch %q: %w", s, err)
		}
		return time.UnixMilli(int64(math.Round(f * 1000))).UTC(), nil
	}

	whole, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(whole, "-")
	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch %q: %w", s, err)
	}
	var nsec int64
	if frac != "" {
		if len(frac) > 9 {
			frac = frac[:9]
		}
		frac += strings.Repeat("0", 9-len(frac))
		if nsec, err = strconv.ParseInt(frac, 10, 64); err != nil || nsec < 0 {
			return time.Time{}, fmt.Errorf("invalid epoch %q", s)
		}
		if neg {
			nsec = -nsec
		}
	}
	return time.Unix(sec, nsec).UTC(), nil
}
