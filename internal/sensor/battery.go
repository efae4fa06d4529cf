package sensor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultBatteryPath is the IIO channel wired to the battery divider.
	DefaultBatteryPath = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"

	// DefaultBatteryDivider matches two equal divider resistors.
	DefaultBatteryDivider = 2.0
)

// IIOBattery reads the battery through a Linux IIO ADC channel.
// The channel reports millivolts after the divider.
type IIOBattery struct {
	Path    string
	Divider float64 // input/output ratio of the resistor divider
}

// NewIIOBattery creates a battery reader. divider <= 0 selects DefaultBatteryDivider.
func NewIIOBattery(path string, divider float64) *IIOBattery {
	if path == "" {
		path = DefaultBatteryPath
	}
	if divider <= 0 {
		divider = DefaultBatteryDivider
	}
	return &IIOBattery{Path: path, Divider: divider}
}

// Battery returns the battery voltage in volts.
func (b *IIOBattery) Battery() (float32, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		return 0, fmt.Errorf("read battery adc: %w", err)
	}
	mv, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse battery adc %q: %w", strings.TrimSpace(string(data)), err)
	}
	return float32(mv * b.Divider / 1000), nil
}
