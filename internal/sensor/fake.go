package sensor

// FakeSensor returns fixed readings with optional per-field errors.
type FakeSensor struct {
	V, I, P float32
	Bat     float32

	VoltageErr error
	CurrentErr error
	PowerErr   error
	BatteryErr error

	// Reads counts calls to each primary field.
	Reads int

	Closed bool
}

// NewFakeSensor creates a FakeSensor returning the given readings.
func NewFakeSensor(v, i, p, bat float32) *FakeSensor {
	return &FakeSensor{V: v, I: i, P: p, Bat: bat}
}

// Voltage returns V or VoltageErr.
func (f *FakeSensor) Voltage() (float32, error) {
	f.Reads++
	if f.VoltageErr != nil {
		return 0, f.VoltageErr
	}
	return f.V, nil
}

// Current returns I or CurrentErr.
func (f *FakeSensor) Current() (float32, error) {
	f.Reads++
	if f.CurrentErr != nil {
		return 0, f.CurrentErr
	}
	return f.I, nil
}

// Power returns P or PowerErr.
func (f *FakeSensor) Power() (float32, error) {
	f.Reads++
	if f.PowerErr != nil {
		return 0, f.PowerErr
	}
	return f.P, nil
}

// Battery returns Bat or BatteryErr.
func (f *FakeSensor) Battery() (float32, error) {
	if f.BatteryErr != nil {
		return 0, f.BatteryErr
	}
	return f.Bat, nil
}

// Close marks the sensor as closed.
func (f *FakeSensor) Close() error {
	f.Closed = true
	return nil
}
