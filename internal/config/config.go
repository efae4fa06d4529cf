// Package config loads the daemon configuration from a TOML file.
// Values not present in the file keep their defaults; command-line flags
// are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sweeney/current-logger/internal/gpio"
	"github.com/sweeney/current-logger/internal/sensor"
)

// Sample sinks.
const (
	SinkHTTP = "http"
	SinkMQTT = "mqtt"
)

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "/etc/current-logger/cfg.toml"

// Config is the daemon configuration.
type Config struct {
	Collector       string        `toml:"collector"`
	Sink            string        `toml:"sink"`
	UserAgent       string        `toml:"user_agent"`
	TransferTimeout time.Duration `toml:"transfer_timeout"`
	Broker          string        `toml:"broker"`
	WSBroker        string        `toml:"ws_broker"`
	HTTP            string        `toml:"http"`
	Heartbeat       time.Duration `toml:"heartbeat"`
	LogLevel        string        `toml:"log_level"`
	GPIO            GPIO          `toml:"gpio"`
	Sensor          Sensor        `toml:"sensor"`
}

// GPIO selects the button and LED lines.
type GPIO struct {
	Chip         string `toml:"chip"`
	PinStartStop int    `toml:"pin_start_stop"`
	PinInterval  int    `toml:"pin_interval"`
	LEDLogging   int    `toml:"led_logging"`
	LEDTick      int    `toml:"led_tick"`
}

// Sensor configures the measurement front end.
type Sensor struct {
	Bus            string  `toml:"bus"`
	Address        uint16  `toml:"address"`
	ShuntOhms      float64 `toml:"shunt_ohms"`
	BatteryPath    string  `toml:"battery_path"`
	BatteryDivider float64 `toml:"battery_divider"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Collector:       "192.168.1.10:3001",
		Sink:            SinkHTTP,
		UserAgent:       "current-logger",
		TransferTimeout: 10 * time.Second,
		Broker:          "tcp://192.168.1.200:1883",
		WSBroker:        "=broker",
		HTTP:            ":80",
		Heartbeat:       15 * time.Minute,
		LogLevel:        "info",
		GPIO: GPIO{
			Chip:         gpio.DefaultChip,
			PinStartStop: gpio.DefaultPinStartStop,
			PinInterval:  gpio.DefaultPinInterval,
			LEDLogging:   gpio.DefaultLEDLogging,
			LEDTick:      gpio.DefaultLEDTick,
		},
		Sensor: Sensor{
			Bus:            "",
			Address:        sensor.DefaultAddress,
			ShuntOhms:      sensor.DefaultShuntOhms,
			BatteryPath:    sensor.DefaultBatteryPath,
			BatteryDivider: sensor.DefaultBatteryDivider,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
// Unknown keys are rejected so typos do not go unnoticed.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c Config) Validate() error {
	var errs []error
	switch c.Sink {
	case SinkHTTP:
		if c.Collector == "" {
			errs = append(errs, errors.New("collector is required for the http sink"))
		}
	case SinkMQTT:
		if c.Broker == "" {
			errs = append(errs, errors.New("broker is required for the mqtt sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("sink %q: must be %q or %q", c.Sink, SinkHTTP, SinkMQTT))
	}
	if c.TransferTimeout < 0 {
		errs = append(errs, fmt.Errorf("transfer_timeout %v: must not be negative", c.TransferTimeout))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat %v: must not be negative", c.Heartbeat))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Sensor.ShuntOhms <= 0 {
		errs = append(errs, fmt.Errorf("sensor.shunt_ohms %v: must be positive", c.Sensor.ShuntOhms))
	}
	if c.Sensor.BatteryDivider <= 0 {
		errs = append(errs, fmt.Errorf("sensor.battery_divider %v: must be positive", c.Sensor.BatteryDivider))
	}
	if c.Sensor.Address == 0 || c.Sensor.Address > 0x7f {
		errs = append(errs, fmt.Errorf("sensor.address %#x: not a 7-bit I2C address", c.Sensor.Address))
	}
	pins := map[string]int{
		"gpio.pin_start_stop": c.GPIO.PinStartStop,
		"gpio.pin_interval":   c.GPIO.PinInterval,
		"gpio.led_logging":    c.GPIO.LEDLogging,
		"gpio.led_tick":       c.GPIO.LEDTick,
	}
	seen := make(map[int]string, len(pins))
	names := make([]string, 0, len(pins))
	for name := range pins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pin := pins[name]
		if pin < 0 {
			errs = append(errs, fmt.Errorf("%s %d: must not be negative", name, pin))
			continue
		}
		if other, dup := seen[pin]; dup {
			errs = append(errs, fmt.Errorf("%s %d: already used by %s", name, pin, other))
			continue
		}
		seen[pin] = name
	}
	return errors.Join(errs...)
}

// Pins returns the GPIO selection in the form the gpio package expects.
func (c Config) Pins() gpio.Pins {
	return gpio.Pins{
		Chip:       c.GPIO.Chip,
		StartStop:  c.GPIO.PinStartStop,
		Interval:   c.GPIO.PinInterval,
		LEDLogging: c.GPIO.LEDLogging,
		LEDTick:    c.GPIO.LEDTick,
	}
}

// ParseLevel maps a log level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", s, err)
	}
	return l, nil
}
