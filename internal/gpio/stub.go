//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealButtons is not available on non-Linux platforms.
type RealButtons struct{}

// NewRealButtons returns an error on non-Linux platforms.
func NewRealButtons(pins Pins, sink EdgeSink) (*RealButtons, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealButtons) Close() error {
	return nil
}

// RealIndicator is not available on non-Linux platforms.
type RealIndicator struct{}

// NewRealIndicator returns an error on non-Linux platforms.
func NewRealIndicator(pins Pins) (*RealIndicator, error) {
	return nil, errUnsupported
}

// SetLogging is not implemented on non-Linux platforms.
func (r *RealIndicator) SetLogging(on bool) error {
	return errUnsupported
}

// ToggleTick is not implemented on non-Linux platforms.
func (r *RealIndicator) ToggleTick() error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealIndicator) Close() error {
	return nil
}
