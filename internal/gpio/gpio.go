// Package gpio provides button edge detection and status LEDs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/current-logger/internal/input"

// EdgeSink receives falling edges from the buttons.
// input.Debouncer satisfies it.
type EdgeSink interface {
	Notify(b input.Button)
}

// Indicator drives the two status LEDs.
type Indicator interface {
	// SetLogging drives the start/stop LED: high while logging.
	SetLogging(on bool) error

	// ToggleTick flips the tick LED once per completed sampling tick.
	ToggleTick() error

	// Close releases GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultChip         = "gpiochip0"
	DefaultPinStartStop = 21
	DefaultPinInterval  = 20
	DefaultLEDLogging   = 7
	DefaultLEDTick      = 6
)

// Pins selects the lines used for buttons and LEDs.
type Pins struct {
	Chip       string
	StartStop  int
	Interval   int
	LEDLogging int
	LEDTick    int
}
