// Command current-logger samples a current/voltage sensor, buffers readings
// and ships them to a remote collector, with two push buttons for control.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/sweeney/current-logger/internal/config"
	"github.com/sweeney/current-logger/internal/gpio"
	"github.com/sweeney/current-logger/internal/input"
	"github.com/sweeney/current-logger/internal/logic"
	"github.com/sweeney/current-logger/internal/metrics"
	"github.com/sweeney/current-logger/internal/mqtt"
	"github.com/sweeney/current-logger/internal/sampler"
	"github.com/sweeney/current-logger/internal/sensor"
	"github.com/sweeney/current-logger/internal/status"
	"github.com/sweeney/current-logger/internal/transfer"
	"github.com/sweeney/current-logger/internal/web"
)

const (
	linkDialTimeout = 2 * time.Second
	linkCheckEvery  = 30 * time.Second
	linkMQTTEvery   = time.Second
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "TOML config file (missing file uses defaults)")
	collector := flag.String("collector", "", "Collector host:port")
	sink := flag.String("sink", "", `Sample sink: "http" or "mqtt"`)
	broker := flag.String("broker", "", "MQTT broker address")
	wsBroker := flag.String("ws-broker", "", `MQTT websocket URL for the live page ("=broker" derives from -broker, "off" disables)`)
	httpAddr := flag.String("http", "", "HTTP status address (empty to disable)")
	heartbeat := flag.Duration("heartbeat", 0, "Heartbeat interval (0 to disable)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	pinStartStop := flag.Int("pin-start-stop", 0, "BCM pin number for the start/stop button")
	pinInterval := flag.Int("pin-interval", 0, "BCM pin number for the interval button")
	printReading := flag.Bool("print-reading", false, "Print one sensor reading and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "collector":
			cfg.Collector = *collector
		case "sink":
			cfg.Sink = *sink
		case "broker":
			cfg.Broker = *broker
		case "ws-broker":
			cfg.WSBroker = *wsBroker
		case "http":
			cfg.HTTP = *httpAddr
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		case "log-level":
			cfg.LogLevel = *logLevel
		case "pin-start-stop":
			cfg.GPIO.PinStartStop = *pinStartStop
		case "pin-interval":
			cfg.GPIO.PinInterval = *pinInterval
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: invalid config: %v\n", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, *printReading, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, printReading bool, logger *slog.Logger) error {
	// Initialize sensor
	ina, err := sensor.NewINA228(sensor.INA228Config{
		Bus:       cfg.Sensor.Bus,
		Address:   cfg.Sensor.Address,
		ShuntOhms: cfg.Sensor.ShuntOhms,
	})
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer ina.Close()
	battery := sensor.NewIIOBattery(cfg.Sensor.BatteryPath, cfg.Sensor.BatteryDivider)

	// Print reading mode
	if printReading {
		return printOnce(os.Stdout, ina, battery)
	}

	m := metrics.New()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.Broker, mqtt.ClientID, logger.With("component", "mqtt"))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Sample sink and the check that decides whether claims are made
	var (
		sender    transfer.Sender
		linkCheck func() bool
		linkEvery time.Duration
	)
	switch cfg.Sink {
	case config.SinkMQTT:
		sender = publisher
		linkCheck, linkEvery = publisher.IsConnected, linkMQTTEvery
	default:
		hs, err := transfer.NewHTTPSender(cfg.Collector, cfg.UserAgent, cfg.TransferTimeout)
		if err != nil {
			return fmt.Errorf("init collector: %w", err)
		}
		sender = hs
		linkCheck, linkEvery = collectorCheck(hs.Addr), linkCheckEvery
	}
	pipeline := transfer.NewPipeline(sender, logger.With("component", "transfer"), m)

	// Initialize GPIO
	debouncer := input.NewDebouncer()
	buttons, err := gpio.NewRealButtons(cfg.Pins(), debouncer)
	if err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}
	defer buttons.Close()

	leds, err := gpio.NewRealIndicator(cfg.Pins())
	if err != nil {
		return fmt.Errorf("init leds: %w", err)
	}
	defer leds.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	ws, err := resolveWSBroker(cfg.WSBroker, cfg.Broker)
	if err != nil {
		logger.Warn("live page disabled", "error", err)
	}
	tracker := status.NewTracker(time.Now(), status.Config{
		Collector:   cfg.Collector,
		Sink:        cfg.Sink,
		Broker:      cfg.Broker,
		WSBroker:    ws,
		HTTPAddr:    cfg.HTTP,
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		SettleMs:    input.SettleTime.Milliseconds(),
		ChunkSize:   transfer.ChunkSize,
		Capacity:    logic.Capacity,
	})
	if info := readNetworkInfo(); info != nil {
		tracker.SetNetwork(info)
	}

	link := newLinkMonitor(linkCheck, linkEvery)
	if !link.Up() {
		logger.Warn("collector link unavailable, samples will be buffered", "sink", cfg.Sink, "collector", cfg.Collector)
	}
	tracker.SetLinkUp(link.Up())
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		logger.Warn("failed to publish startup event", "error", err)
	} else {
		logger.Info("queued startup event")
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		var accessLog io.Writer
		if level, _ := config.ParseLevel(cfg.LogLevel); level <= slog.LevelDebug {
			accessLog = os.Stdout
		}
		srv := web.New(cfg.HTTP, tracker, m.Handler(), accessLog)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", "addr", cfg.HTTP)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go debouncer.Run(ctx)
	go pipeline.Run(ctx)
	go link.Run(ctx)

	loop := sampler.New(sampler.Deps{
		Buttons:   debouncer,
		Sensor:    ina,
		Battery:   battery,
		LEDs:      leds,
		Transfer:  pipeline,
		Publisher: publisher,
		Tracker:   tracker,
		Metrics:   m,
		Logger:    logger.With("component", "sampler"),
	}, time.Now())

	logger.Info("started",
		"sink", cfg.Sink, "collector", cfg.Collector, "broker", cfg.Broker,
		"heartbeat", cfg.Heartbeat, "capacity", logic.Capacity, "chunk", transfer.ChunkSize)

	ticker := time.NewTicker(sampler.Quantum)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop, publisher, publisher, tracker, link, cfg.Heartbeat, logger, time.Now, ticker.C, sigCh)
}

// resolveWSBroker converts the ws-broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or
// empty disables the live page.
func resolveWSBroker(ws, broker string) (string, error) {
	switch ws {
	case "", "off":
		return "", nil
	case "=broker":
	default:
		return ws, nil
	}
	u, err := url.Parse(broker)
	if err != nil {
		return "", fmt.Errorf("parse broker %q: %w", broker, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("broker %q has no host", broker)
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String(), nil
}

// linkStatus reports whether the collector is reachable.
type linkStatus interface {
	Up() bool
}

func runLoop(loop *sampler.Loop, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, link linkStatus, heartbeat time.Duration, logger *slog.Logger, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	hb := logic.NewHeartbeat(now())

	for {
		select {
		case s := <-sig:
			logger.Info("shutting down", "signal", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Warn("failed to publish shutdown event", "error", err)
			} else {
				logger.Info("queued shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			if link != nil {
				loop.SetLinkUp(link.Up())
			}
			loop.Step(t)

			if tracker != nil && mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			// Check for heartbeat
			if hbData := hb.Check(t, heartbeat); hbData != nil {
				logger.Info("heartbeat", "uptime", hbData.Uptime, "buffered", loop.Buffered(), "mode", loop.Scheduler().Mode())

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if info := readNetworkInfo(); info != nil {
						tracker.SetNetwork(info)
					}
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					logger.Warn("heartbeat publish error", "error", err)
				}
			}
		}
	}
}

// printOnce writes a single reading. Field errors are reported, not fatal.
func printOnce(w io.Writer, s sensor.Sensor, b sensor.Battery) error {
	var errs []error
	read := func(f func() (float32, error)) float32 {
		v, err := f()
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	v := read(s.Voltage)
	i := read(s.Current)
	p := read(s.Power)
	bat := read(b.Battery)
	fmt.Fprintf(w, "V: %.5f V, I: %.5f A, P: %.5f W, BAT: %.2f V\n", v, i, p, bat)
	for _, err := range errs {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	return nil
}

// linkMonitor re-evaluates collector reachability in the background so a
// slow check never delays a sampling tick.
type linkMonitor struct {
	up    atomic.Bool
	check func() bool
	every time.Duration
}

func newLinkMonitor(check func() bool, every time.Duration) *linkMonitor {
	m := &linkMonitor{check: check, every: every}
	m.up.Store(check())
	return m
}

func (m *linkMonitor) Up() bool {
	return m.up.Load()
}

func (m *linkMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.up.Store(m.check())
		}
	}
}

// collectorCheck uses the pi-helper network status when present and
// otherwise dials the collector with a TCP connect.
func collectorCheck(addr string) func() bool {
	return func() bool {
		if info := readNetworkInfo(); info != nil {
			return info.Status == networkConnected
		}
		return dialTCP(addr, linkDialTimeout)
	}
}

func dialTCP(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

const networkConnected = "connected"

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
