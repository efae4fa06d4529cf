// Package sensor reads calibrated voltage, current, power and battery values.
// Each quantity is read independently so one failing register does not lose the others.
package sensor

// Sensor reads the three primary measurements.
type Sensor interface {
	// Voltage returns the bus voltage in volts.
	Voltage() (float32, error)

	// Current returns the shunt current in amperes.
	Current() (float32, error)

	// Power returns the power in watts.
	Power() (float32, error)

	// Close releases the device.
	Close() error
}

// Battery reads the auxiliary battery voltage.
type Battery interface {
	// Battery returns the battery voltage in volts.
	Battery() (float32, error)
}
