// Package logic contains the pure sampling state machine for the current logger.
// This package has NO external dependencies (no GPIO, sensor, network, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Capacity is the maximum number of samples held in the sample log.
const Capacity = 4095

// Mode is the logging mode of the scheduler.
type Mode string

const (
	ModeStopped Mode = "STOPPED"
	ModeLogging Mode = "LOGGING"
)

// EventType represents a scheduler transition to be published.
type EventType string

const (
	EventStart          EventType = "LOGGING_START"
	EventStop           EventType = "LOGGING_STOP"
	EventAutoStop       EventType = "AUTO_STOP"
	EventIntervalChange EventType = "INTERVAL_CHANGE"
)

// Event represents a scheduler transition.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Mode      Mode
	Interval  time.Duration
}

// Sample is one measurement. Timestamp is milliseconds since the cycle start.
type Sample struct {
	Voltage   float32
	Current   float32
	Power     float32
	Timestamp uint32
	Battery   float32
}

// Input is the debounced button state observed on one loop pass.
type Input struct {
	StartStop     bool
	IntervalCycle bool
	Time          time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Starts          int
	Stops           int
	AutoStops       int
	IntervalChanges int
}

// Intervals is the sampling interval ladder, cycled in order.
var Intervals = []time.Duration{
	4 * time.Millisecond,
	9 * time.Millisecond,
	49 * time.Millisecond,
	99 * time.Millisecond,
	499 * time.Millisecond,
	999 * time.Millisecond,
}

// NextInterval returns the interval following d on the ladder, wrapping at the end.
// An interval not on the ladder maps to the first rung.
func NextInterval(d time.Duration) time.Duration {
	for i, v := range Intervals {
		if v == d {
			return Intervals[(i+1)%len(Intervals)]
		}
	}
	return Intervals[0]
}
