package transfer

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/sweeney/current-logger/internal/logic"
)

// Measurement and Tag identify the series on the collector.
const (
	Measurement = "currentlogger"
	Tag         = "currentch1"
)

// Point is the wire form of one sample. Field order is part of the format.
type Point struct {
	Measurement string  `json:"measurement"`
	Tag         string  `json:"tag"`
	Timestamp   uint32  `json:"timestamp"`
	Current     Decimal `json:"current"`
	Voltage     Decimal `json:"voltage"`
	Power       Decimal `json:"power"`
	Bat         Decimal `json:"bat"`
}

// Decimal is a float encoded with a fixed number of fractional digits.
// Non-finite values encode as zero so a bad reading cannot stall the log.
type Decimal struct {
	Value  float32
	Places int
}

// MarshalJSON implements json.Marshaler.
func (d Decimal) MarshalJSON() ([]byte, error) {
	v := float64(d.Value)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.AppendFloat(nil, v, 'f', d.Places, 32), nil
}

// NewPoint converts a sample to its wire form.
func NewPoint(s logic.Sample) Point {
	return Point{
		Measurement: Measurement,
		Tag:         Tag,
		Timestamp:   s.Timestamp,
		Current:     Decimal{Value: s.Current, Places: 5},
		Voltage:     Decimal{Value: s.Voltage, Places: 5},
		Power:       Decimal{Value: s.Power, Places: 5},
		Bat:         Decimal{Value: s.Battery, Places: 2},
	}
}

// FormatPayload encodes samples as a compact JSON array of points.
func FormatPayload(samples []logic.Sample) ([]byte, error) {
	points := make([]Point, len(samples))
	for i, s := range samples {
		points[i] = NewPoint(s)
	}
	return json.Marshal(points)
}
