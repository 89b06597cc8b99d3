// Package models provides request and response models for the hexfog API.
package models

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// Position is a [lon, lat] pair, in GeoJSON order.
type Position [2]float64

// Point converts the position to an orb point.
func (p Position) Point() orb.Point {
	return orb.Point{p[0], p[1]}
}

// Validate checks the position is finite and in range.
func (p Position) Validate(field string) []FieldError {
	var errs []FieldError
	if math.IsNaN(p[0]) || p[0] < -180 || p[0] > 180 {
		errs = append(errs, FieldError{
			Field:   field + "[0]",
			Message: "longitude must be between -180 and 180",
			Code:    "OUT_OF_RANGE",
		})
	}
	if math.IsNaN(p[1]) || p[1] < -90 || p[1] > 90 {
		errs = append(errs, FieldError{
			Field:   field + "[1]",
			Message: "latitude must be between -90 and 90",
			Code:    "OUT_OF_RANGE",
		})
	}
	return errs
}

// PositionsToLineString converts positions to a path, validating each one.
func PositionsToLineString(field string, positions []Position) (orb.LineString, []FieldError) {
	var errs []FieldError
	ls := make(orb.LineString, 0, len(positions))
	for i, p := range positions {
		errs = append(errs, p.Validate(fmt.Sprintf("%s[%d]", field, i))...)
		ls = append(ls, p.Point())
	}
	return ls, errs
}

// HealthStatus represents the health status of a service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp is a helper type for time.Time with custom JSON formatting.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 {
		return fmt.Errorf("invalid timestamp %q", data)
	}
	parsed, err := time.Parse(time.RFC3339, string(data[1:len(data)-1]))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
