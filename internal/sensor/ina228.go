package sensor

import (
	"fmt"
	"math"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// INA228 register addresses.
const (
	regShuntCal = 0x02
	regVBus     = 0x05
	regCurrent  = 0x07
	regPower    = 0x08
)

const (
	// DefaultAddress is the INA228 address with A0/A1 tied to GND.
	DefaultAddress = 0x40

	// DefaultShuntOhms is the shunt resistor fitted on the logger board.
	DefaultShuntOhms = 0.010

	// maxCurrent is the full-scale current used to derive the current LSB.
	maxCurrent = 16.384

	// vbusLSB is the VBUS register resolution in volts.
	vbusLSB = 195.3125e-6
)

// INA228 reads an INA228 power monitor over I2C.
type INA228 struct {
	bus        i2c.BusCloser
	dev        *i2c.Dev
	currentLSB float64
}

// INA228Config configures the device.
type INA228Config struct {
	Bus       string  // I2C bus name; empty selects the first bus
	Address   uint16  // 7-bit device address
	ShuntOhms float64 // shunt resistance
}

// NewINA228 opens the bus, programs SHUNT_CAL and returns the device.
func NewINA228(cfg INA228Config) (*INA228, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}
	if cfg.Address == 0 {
		cfg.Address = DefaultAddress
	}
	if cfg.ShuntOhms <= 0 {
		cfg.ShuntOhms = DefaultShuntOhms
	}

	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.Bus, err)
	}

	s := &INA228{
		bus:        bus,
		dev:        &i2c.Dev{Bus: bus, Addr: cfg.Address},
		currentLSB: CurrentLSB(),
	}

	cal := ShuntCal(s.currentLSB, cfg.ShuntOhms)
	if err := s.dev.Tx([]byte{regShuntCal, byte(cal >> 8), byte(cal)}, nil); err != nil {
		bus.Close()
		return nil, fmt.Errorf("write SHUNT_CAL: %w", err)
	}
	return s, nil
}

// Voltage reads VBUS.
func (s *INA228) Voltage() (float32, error) {
	b, err := s.read24(regVBus)
	if err != nil {
		return 0, fmt.Errorf("read VBUS: %w", err)
	}
	return DecodeVBus(b), nil
}

// Current reads CURRENT.
func (s *INA228) Current() (float32, error) {
	b, err := s.read24(regCurrent)
	if err != nil {
		return 0, fmt.Errorf("read CURRENT: %w", err)
	}
	return DecodeCurrent(b, s.currentLSB), nil
}

// Power reads POWER.
func (s *INA228) Power() (float32, error) {
	b, err := s.read24(regPower)
	if err != nil {
		return 0, fmt.Errorf("read POWER: %w", err)
	}
	return DecodePower(b, s.currentLSB), nil
}

// Close releases the I2C bus.
func (s *INA228) Close() error {
	return s.bus.Close()
}

func (s *INA228) read24(reg byte) ([3]byte, error) {
	var buf [3]byte
	err := s.dev.Tx([]byte{reg}, buf[:])
	return buf, err
}

// CurrentLSB returns the current register resolution in amperes.
func CurrentLSB() float64 {
	return maxCurrent / (1 << 19)
}

// ShuntCal returns the SHUNT_CAL register value for the given current LSB and shunt.
func ShuntCal(currentLSB, shuntOhms float64) uint16 {
	return uint16(math.Round(13107.2e6 * currentLSB * shuntOhms))
}

func raw24(b [3]byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// DecodeVBus converts a VBUS register value to volts. The low 4 bits are reserved.
func DecodeVBus(b [3]byte) float32 {
	return float32(float64(raw24(b)>>4) * vbusLSB)
}

// DecodeCurrent converts a CURRENT register value (20-bit two's complement) to amperes.
func DecodeCurrent(b [3]byte, currentLSB float64) float32 {
	v := int32(raw24(b) >> 4)
	if v&0x80000 != 0 {
		v -= 0x100000
	}
	return float32(float64(v) * currentLSB)
}

// DecodePower converts a POWER register value to watts.
func DecodePower(b [3]byte, currentLSB float64) float32 {
	return float32(3.2 * currentLSB * float64(raw24(b)))
}
