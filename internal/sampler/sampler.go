// Package sampler runs the sampling tick: it feeds debounced button presses to
// the scheduler, reads the sensor when a tick is due, appends to the sample
// log while logging and hands the head of the log to the transfer pipeline.
//
// A Loop is driven from a single goroutine; the sample log is never shared.
package sampler

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sweeney/current-logger/internal/gpio"
	"github.com/sweeney/current-logger/internal/input"
	"github.com/sweeney/current-logger/internal/logic"
	"github.com/sweeney/current-logger/internal/metrics"
	"github.com/sweeney/current-logger/internal/mqtt"
	"github.com/sweeney/current-logger/internal/samplelog"
	"github.com/sweeney/current-logger/internal/sensor"
	"github.com/sweeney/current-logger/internal/status"
	"github.com/sweeney/current-logger/internal/transfer"
)

// Quantum is how often the loop is stepped.
const Quantum = time.Millisecond

// Buttons reports debounced presses. input.Debouncer satisfies it.
type Buttons interface {
	Poll(b input.Button) bool
}

// Claimer accepts chunks of the sample log. transfer.Pipeline satisfies it.
type Claimer interface {
	Claim(samples []logic.Sample) int
	Stats() transfer.Stats
}

// Deps are the collaborators of a Loop. Sensor, Buttons and Transfer are
// required; the rest may be nil.
type Deps struct {
	Buttons   Buttons
	Sensor    sensor.Sensor
	Battery   sensor.Battery
	LEDs      gpio.Indicator
	Transfer  Claimer
	Publisher mqtt.Publisher
	Tracker   *status.Tracker
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Loop owns the scheduler and the sample log.
type Loop struct {
	Deps

	sched   *logic.Scheduler
	samples *samplelog.Log
	linkUp  bool
	session string
	ledOn   bool
	ledSet  bool
}

// New creates a stopped loop whose first cycle starts at start.
func New(d Deps, start time.Time) *Loop {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	l := &Loop{
		Deps:    d,
		sched:   logic.NewScheduler(start),
		samples: samplelog.New(logic.Capacity),
	}
	l.Metrics.SetLogging(false, l.sched.Interval().Seconds())
	return l
}

// SetLinkUp sets whether buffered samples may be handed to the transfer pipeline.
func (l *Loop) SetLinkUp(up bool) {
	if up != l.linkUp {
		l.Logger.Info("collector link changed", "up", up)
	}
	l.linkUp = up
	if l.Tracker != nil {
		l.Tracker.SetLinkUp(up)
	}
}

// Scheduler exposes the scheduler for inspection.
func (l *Loop) Scheduler() *logic.Scheduler {
	return l.sched
}

// Buffered returns the number of samples waiting in the log.
func (l *Loop) Buffered() int {
	return l.samples.Len()
}

// Session returns the id of the current or last logging session.
func (l *Loop) Session() string {
	return l.session
}

// Step runs one quantum at time now.
func (l *Loop) Step(now time.Time) {
	in := logic.Input{
		StartStop:     l.Buttons.Poll(input.StartStop),
		IntervalCycle: l.Buttons.Poll(input.IntervalCycle),
		Time:          now,
	}
	for _, e := range l.sched.Process(in) {
		if e.Type == logic.EventStart {
			l.samples.Clear()
			l.session = uuid.NewString()
			if l.Tracker != nil {
				l.Tracker.SetSession(l.session)
			}
		}
		l.emit(e)
	}
	l.driveLoggingLED()

	if l.sched.Due(now) {
		l.tick(now)
	}

	l.updateStatus()
}

func (l *Loop) tick(now time.Time) {
	l.sched.Advance()
	l.Metrics.Tick()
	if l.LEDs != nil {
		if err := l.LEDs.ToggleTick(); err != nil {
			l.Logger.Debug("tick led", "error", err)
		}
	}

	s := l.read(l.sched.Elapsed(now))
	if l.Tracker != nil {
		l.Tracker.RecordSample(s)
	}

	if l.sched.Logging() {
		l.samples.Append(s)
		l.Metrics.SampleRecorded()
	}

	if e := l.sched.CheckCapacity(l.samples.Len(), now); e != nil {
		l.emit(*e)
		l.driveLoggingLED()
	}

	if l.linkUp && l.samples.Len() > 0 {
		if n := l.Transfer.Claim(l.samples.Snapshot()); n > 0 {
			l.samples.DrainFront(n)
		}
	}
	l.Metrics.SetBuffer(l.samples.Len())
}

// read takes one sample. A failing field is logged and left at zero.
func (l *Loop) read(ts uint32) logic.Sample {
	s := logic.Sample{Timestamp: ts}
	s.Voltage = l.field("voltage", l.Sensor.Voltage)
	s.Current = l.field("current", l.Sensor.Current)
	s.Power = l.field("power", l.Sensor.Power)
	if l.Battery != nil {
		s.Battery = l.field("battery", l.Battery.Battery)
	}
	return s
}

func (l *Loop) field(name string, read func() (float32, error)) float32 {
	v, err := read()
	if err != nil {
		l.Logger.Warn("sensor read failed", "field", name, "error", err)
		l.Metrics.SensorError(name)
		if l.Tracker != nil {
			l.Tracker.RecordError(err)
		}
		return 0
	}
	return v
}

func (l *Loop) emit(e logic.Event) {
	l.Logger.Info("event", "type", e.Type, "mode", e.Mode, "interval", e.Interval, "buffered", l.samples.Len())
	l.Metrics.SchedulerEvent(string(e.Type))
	l.Metrics.SetLogging(l.sched.Logging(), l.sched.Interval().Seconds())
	if l.Publisher != nil {
		if err := l.Publisher.Publish(e); err != nil {
			// Don't stop sampling on publish failure
			l.Logger.Warn("publish event", "type", e.Type, "error", err)
		}
	}
}

// driveLoggingLED sets the start/stop LED when the mode changes.
func (l *Loop) driveLoggingLED() {
	on := l.sched.Logging()
	if l.LEDs == nil || (l.ledSet && on == l.ledOn) {
		return
	}
	if err := l.LEDs.SetLogging(on); err != nil {
		l.Logger.Warn("logging led", "error", err)
		return
	}
	l.ledOn = on
	l.ledSet = true
}

func (l *Loop) updateStatus() {
	if l.Tracker == nil {
		return
	}
	l.Tracker.Update(l.sched.Mode(), l.sched.Interval(), l.samples.Len(), l.samples.Watermark(), l.sched.EventCountsSnapshot())
	l.Tracker.SetTransfer(l.Transfer.Stats())
}
