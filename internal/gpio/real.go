//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/current-logger/internal/input"
)

// RealButtons watches the two buttons for falling edges.
type RealButtons struct {
	startStop *gpiocdev.Line
	interval  *gpiocdev.Line
}

// NewRealButtons requests both button lines as pulled-up inputs that report
// falling edges to sink. Edges are delivered from the gpiocdev event goroutine.
func NewRealButtons(pins Pins, sink EdgeSink) (*RealButtons, error) {
	handler := func(b input.Button) gpiocdev.EventHandler {
		return func(gpiocdev.LineEvent) {
			sink.Notify(b)
		}
	}

	ss, err := gpiocdev.RequestLine(pins.Chip, pins.StartStop,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(handler(input.StartStop)))
	if err != nil {
		return nil, fmt.Errorf("request start/stop pin %d: %w", pins.StartStop, err)
	}

	iv, err := gpiocdev.RequestLine(pins.Chip, pins.Interval,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(handler(input.IntervalCycle)))
	if err != nil {
		ss.Close()
		return nil, fmt.Errorf("request interval pin %d: %w", pins.Interval, err)
	}

	return &RealButtons{startStop: ss, interval: iv}, nil
}

// Close releases the button lines.
func (r *RealButtons) Close() error {
	var errs []error
	if r.startStop != nil {
		if err := r.startStop.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close start/stop pin: %w", err))
		}
	}
	if r.interval != nil {
		if err := r.interval.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close interval pin: %w", err))
		}
	}
	return errors.Join(errs...)
}

// outputLine is the part of *gpiocdev.Line the LEDs use.
type outputLine interface {
	SetValue(value int) error
	Reconfigure(options ...gpiocdev.LineConfigOption) error
	Close() error
}

// RealIndicator drives the status LEDs on GPIO output lines.
type RealIndicator struct {
	logging outputLine
	tick    outputLine
	tickOn  bool
}

// NewRealIndicator requests both LED lines as outputs, initially low.
func NewRealIndicator(pins Pins) (*RealIndicator, error) {
	logging, err := gpiocdev.RequestLine(pins.Chip, pins.LEDLogging, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request logging LED pin %d: %w", pins.LEDLogging, err)
	}
	tick, err := gpiocdev.RequestLine(pins.Chip, pins.LEDTick, gpiocdev.AsOutput(0))
	if err != nil {
		logging.Close()
		return nil, fmt.Errorf("request tick LED pin %d: %w", pins.LEDTick, err)
	}
	return &RealIndicator{logging: logging, tick: tick}, nil
}

// SetLogging drives the start/stop LED.
func (r *RealIndicator) SetLogging(on bool) error {
	return r.logging.SetValue(boolToValue(on))
}

// ToggleTick flips the tick LED.
func (r *RealIndicator) ToggleTick() error {
	next := !r.tickOn
	if err := r.tick.SetValue(boolToValue(next)); err != nil {
		return err
	}
	r.tickOn = next
	return nil
}

// Close drives both LEDs low and releases the lines.
// Pins are reconfigured as inputs so the board boots with them floating.
func (r *RealIndicator) Close() error {
	var errs []error
	for name, l := range map[string]outputLine{"logging LED": r.logging, "tick LED": r.tick} {
		if l == nil {
			continue
		}
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", name, err))
		}
		if err := l.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", name, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func boolToValue(b bool) int {
	if b {
		return 1
	}
	return 0
}
