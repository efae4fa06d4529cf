package sampler

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sweeney/current-logger/internal/gpio"
	"github.com/sweeney/current-logger/internal/input"
	"github.com/sweeney/current-logger/internal/logic"
	"github.com/sweeney/current-logger/internal/metrics"
	"github.com/sweeney/current-logger/internal/mqtt"
	"github.com/sweeney/current-logger/internal/sensor"
	"github.com/sweeney/current-logger/internal/status"
	"github.com/sweeney/current-logger/internal/transfer"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// scriptedButtons reports presses queued by press, read-and-clear.
type scriptedButtons struct {
	pending [2]bool
}

func (b *scriptedButtons) press(btn input.Button) { b.pending[btn] = true }

func (b *scriptedButtons) Poll(btn input.Button) bool {
	p := b.pending[btn]
	b.pending[btn] = false
	return p
}

// fakeClaimer accepts one chunk at a time until release is called.
type fakeClaimer struct {
	inFlight bool
	chunks   [][]logic.Sample
	stats    transfer.Stats
}

func (f *fakeClaimer) Claim(s []logic.Sample) int {
	if f.inFlight || len(s) == 0 {
		return 0
	}
	n := min(len(s), transfer.ChunkSize)
	chunk := make([]logic.Sample, n)
	copy(chunk, s[:n])
	f.chunks = append(f.chunks, chunk)
	f.inFlight = true
	f.stats.Claims++
	return n
}

func (f *fakeClaimer) Stats() transfer.Stats { return f.stats }

func (f *fakeClaimer) release() { f.inFlight = false }

type harness struct {
	loop    *Loop
	buttons *scriptedButtons
	sensor  *sensor.FakeSensor
	leds    *gpio.FakeIndicator
	claimer *fakeClaimer
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		buttons: &scriptedButtons{},
		sensor:  sensor.NewFakeSensor(12.5, 0.25, 3.125, 4.1),
		leds:    gpio.NewFakeIndicator(),
		claimer: &fakeClaimer{},
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(t0, status.Config{Capacity: logic.Capacity}),
		now:     t0,
	}
	h.loop = New(Deps{
		Buttons:   h.buttons,
		Sensor:    h.sensor,
		Battery:   h.sensor,
		LEDs:      h.leds,
		Transfer:  h.claimer,
		Publisher: h.pub,
		Tracker:   h.tracker,
		Metrics:   metrics.New(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, t0)
	return h
}

// step advances the clock by d and runs one quantum.
func (h *harness) step(d time.Duration) {
	h.now = h.now.Add(d)
	h.loop.Step(h.now)
}

func (h *harness) start() {
	h.buttons.press(input.StartStop)
	h.step(Quantum)
}

// ticks runs n quanta spaced so that every one is a due tick at 4ms.
func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.step(5 * time.Millisecond)
	}
}

func TestStoppedStillTicksWithoutAppending(t *testing.T) {
	h := newHarness(t)

	h.ticks(10)

	if h.loop.Buffered() != 0 {
		t.Errorf("buffered while stopped: %d", h.loop.Buffered())
	}
	if h.leds.Toggles != 10 {
		t.Errorf("tick LED toggles: got %d, want 10", h.leds.Toggles)
	}
	if h.sensor.Reads != 30 {
		t.Errorf("sensor reads: got %d, want 30", h.sensor.Reads)
	}
	if !h.tracker.Snapshot().HasSample {
		t.Error("readings should reach the status page while stopped")
	}
}

func TestStartLogsSamples(t *testing.T) {
	h := newHarness(t)
	h.start()

	if !h.loop.Scheduler().Logging() {
		t.Fatal("expected logging after start press")
	}
	if !h.leds.Logging {
		t.Error("start/stop LED should be on while logging")
	}
	if types := h.pub.EventTypes(); len(types) != 1 || types[0] != logic.EventStart {
		t.Errorf("events: %v", types)
	}
	if h.loop.Session() == "" {
		t.Error("expected a session id on start")
	}

	for i := 0; i < 12; i++ {
		h.step(Quantum)
	}
	if h.loop.Buffered() != 3 {
		t.Fatalf("buffered after 12ms at 4ms: got %d, want 3", h.loop.Buffered())
	}
	snap := h.loop.samples.Snapshot()
	if snap[0].Timestamp != 1 || snap[1].Timestamp != 5 || snap[2].Timestamp != 9 {
		t.Errorf("timestamps: %d %d %d", snap[0].Timestamp, snap[1].Timestamp, snap[2].Timestamp)
	}
	if snap[0].Voltage != 12.5 || snap[0].Current != 0.25 || snap[0].Power != 3.125 || snap[0].Battery != 4.1 {
		t.Errorf("sample: %+v", snap[0])
	}
}

func TestStopKeepsBuffer(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.ticks(20)

	h.buttons.press(input.StartStop)
	h.step(Quantum)

	if h.loop.Scheduler().Logging() {
		t.Fatal("expected stopped")
	}
	if h.leds.Logging {
		t.Error("start/stop LED should be off")
	}
	n := h.loop.Buffered()
	h.ticks(5)
	if h.loop.Buffered() != n {
		t.Errorf("stopped loop appended: %d -> %d", n, h.loop.Buffered())
	}
}

func TestStartClearsBuffer(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.ticks(20)
	first := h.loop.Session()

	h.buttons.press(input.StartStop)
	h.step(Quantum)
	if h.loop.Buffered() == 0 {
		t.Fatal("stop should not clear the buffer")
	}

	h.buttons.press(input.StartStop)
	h.step(Quantum)
	if h.loop.Buffered() != 0 {
		t.Errorf("start should clear the buffer, got %d", h.loop.Buffered())
	}
	if h.loop.Session() == first {
		t.Error("each start should open a new session")
	}
}

func TestAutoStopAtCapacity(t *testing.T) {
	h := newHarness(t)
	h.start()

	h.ticks(logic.Capacity - 1)
	if h.loop.Buffered() != logic.Capacity-1 {
		t.Fatalf("buffered: got %d, want %d", h.loop.Buffered(), logic.Capacity-1)
	}
	if !h.loop.Scheduler().Logging() {
		t.Fatal("must still be logging at 4094 samples")
	}

	h.ticks(1)
	if h.loop.Buffered() != logic.Capacity {
		t.Fatalf("buffered: got %d, want %d", h.loop.Buffered(), logic.Capacity)
	}
	if h.loop.Scheduler().Logging() {
		t.Fatal("expected auto-stop at capacity")
	}
	types := h.pub.EventTypes()
	if types[len(types)-1] != logic.EventAutoStop {
		t.Errorf("last event: got %s, want AUTO_STOP", types[len(types)-1])
	}
	if h.leds.Logging {
		t.Error("start/stop LED should be off after auto-stop")
	}

	h.ticks(10)
	if h.loop.Buffered() != logic.Capacity {
		t.Errorf("buffer changed after auto-stop: %d", h.loop.Buffered())
	}
	if got := h.tracker.Snapshot().Watermark; got != 100 {
		t.Errorf("watermark: got %d, want 100", got)
	}
}

func TestLinkDownNeverClaims(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.ticks(100)

	if len(h.claimer.chunks) != 0 {
		t.Errorf("claims with link down: %d", len(h.claimer.chunks))
	}
	if h.loop.Buffered() != 100 {
		t.Errorf("buffered: got %d, want 100", h.loop.Buffered())
	}
}

func TestClaimEvictsHeadOfLog(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.ticks(69)

	h.loop.SetLinkUp(true)
	h.ticks(1)

	if len(h.claimer.chunks) != 1 {
		t.Fatalf("claims: got %d, want 1", len(h.claimer.chunks))
	}
	if len(h.claimer.chunks[0]) != transfer.ChunkSize {
		t.Errorf("chunk size: got %d", len(h.claimer.chunks[0]))
	}
	if h.loop.Buffered() != 6 {
		t.Errorf("remaining: got %d, want 6", h.loop.Buffered())
	}
	head := h.loop.samples.Snapshot()[0].Timestamp
	if last := h.claimer.chunks[0][transfer.ChunkSize-1].Timestamp; head <= last {
		t.Errorf("remaining head %d should follow the claimed chunk ending at %d", head, last)
	}

	// In flight: nothing more is claimed.
	h.ticks(1)
	if len(h.claimer.chunks) != 1 || h.loop.Buffered() != 7 {
		t.Errorf("claimed while in flight: chunks=%d buffered=%d", len(h.claimer.chunks), h.loop.Buffered())
	}

	h.claimer.release()
	h.ticks(1)
	if len(h.claimer.chunks) != 2 || len(h.claimer.chunks[1]) != 8 {
		t.Errorf("second claim: chunks=%d", len(h.claimer.chunks))
	}
	if h.loop.Buffered() != 0 {
		t.Errorf("buffered after second claim: %d", h.loop.Buffered())
	}
}

func TestDrainContinuesWhileStopped(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.ticks(100)
	h.buttons.press(input.StartStop)
	h.step(Quantum)

	h.loop.SetLinkUp(true)
	for i := 0; i < 3; i++ {
		h.ticks(1)
		h.claimer.release()
	}
	if h.loop.Buffered() != 0 {
		t.Errorf("buffer should drain while stopped, got %d", h.loop.Buffered())
	}
}

func TestFieldErrorLeavesZero(t *testing.T) {
	h := newHarness(t)
	h.sensor.CurrentErr = errors.New("i2c: nack")
	h.sensor.BatteryErr = errors.New("adc: busy")
	h.start()
	h.ticks(1)

	s := h.loop.samples.Snapshot()[0]
	if s.Current != 0 || s.Battery != 0 {
		t.Errorf("failed fields should be zero: %+v", s)
	}
	if s.Voltage != 12.5 || s.Power != 3.125 {
		t.Errorf("healthy fields should be kept: %+v", s)
	}

	snap := h.tracker.Snapshot()
	if snap.SensorErrors != 2 {
		t.Errorf("sensor errors: got %d, want 2", snap.SensorErrors)
	}
	if snap.LastError != "adc: busy" {
		t.Errorf("last error: %q", snap.LastError)
	}
}

func TestAllFieldsFailingStillAppends(t *testing.T) {
	h := newHarness(t)
	h.sensor.VoltageErr = errors.New("x")
	h.sensor.CurrentErr = errors.New("x")
	h.sensor.PowerErr = errors.New("x")
	h.start()
	h.ticks(3)

	if h.loop.Buffered() != 3 {
		t.Errorf("buffered: got %d, want 3", h.loop.Buffered())
	}
}

func TestIntervalChange(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.ticks(5)

	h.buttons.press(input.IntervalCycle)
	h.step(Quantum)

	if h.loop.Scheduler().Interval() != 9*time.Millisecond {
		t.Fatalf("interval: got %v, want 9ms", h.loop.Scheduler().Interval())
	}
	types := h.pub.EventTypes()
	if types[len(types)-1] != logic.EventIntervalChange {
		t.Errorf("last event: %s", types[len(types)-1])
	}
	if h.loop.Buffered() != 5 {
		t.Errorf("interval change must not clear the buffer, got %d", h.loop.Buffered())
	}

	// Timestamps restart from the change.
	for i := 0; i < 10; i++ {
		h.step(Quantum)
	}
	snap := h.loop.samples.Snapshot()
	if got := snap[5].Timestamp; got != 1 {
		t.Errorf("first timestamp after change: got %d, want 1", got)
	}
	if got := snap[6].Timestamp; got != 10 {
		t.Errorf("second timestamp after change: got %d, want 10", got)
	}
}

func TestPublishFailureDoesNotStopSampling(t *testing.T) {
	h := newHarness(t)
	h.pub.PublishError = errors.New("broker down")
	h.start()
	h.ticks(4)

	if !h.loop.Scheduler().Logging() || h.loop.Buffered() != 4 {
		t.Errorf("logging=%v buffered=%d", h.loop.Scheduler().Logging(), h.loop.Buffered())
	}
}

func TestTrackerReflectsLoop(t *testing.T) {
	h := newHarness(t)
	h.loop.SetLinkUp(true)
	h.start()
	h.buttons.press(input.IntervalCycle)
	h.step(Quantum)

	snap := h.tracker.Snapshot()
	if snap.Mode != logic.ModeLogging {
		t.Errorf("mode: %s", snap.Mode)
	}
	if snap.Interval != 9*time.Millisecond {
		t.Errorf("interval: %v", snap.Interval)
	}
	if !snap.LinkUp {
		t.Error("expected link up")
	}
	if snap.Session != h.loop.Session() {
		t.Errorf("session: got %q, want %q", snap.Session, h.loop.Session())
	}
	if snap.Counts.Starts != 1 || snap.Counts.IntervalChanges != 1 {
		t.Errorf("counts: %+v", snap.Counts)
	}
}

func TestLEDErrorsAreNotFatal(t *testing.T) {
	h := newHarness(t)
	h.leds.Err = errors.New("line released")
	h.start()
	h.ticks(3)

	if h.loop.Buffered() != 3 {
		t.Errorf("buffered: got %d, want 3", h.loop.Buffered())
	}
}
