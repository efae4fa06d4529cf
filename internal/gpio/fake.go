package gpio

import (
	"sync"

	"github.com/sweeney/current-logger/internal/input"
)

// FakeIndicator records LED state for test assertions.
type FakeIndicator struct {
	// Logging is the current start/stop LED level.
	Logging bool

	// Tick is the current tick LED level.
	Tick bool

	// Toggles counts ToggleTick calls.
	Toggles int

	// Err, if set, is returned by SetLogging and ToggleTick.
	Err error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeIndicator creates a FakeIndicator with both LEDs off.
func NewFakeIndicator() *FakeIndicator {
	return &FakeIndicator{}
}

// SetLogging records the start/stop LED level.
func (f *FakeIndicator) SetLogging(on bool) error {
	if f.Err != nil {
		return f.Err
	}
	f.Logging = on
	return nil
}

// ToggleTick flips the recorded tick LED level.
func (f *FakeIndicator) ToggleTick() error {
	if f.Err != nil {
		return f.Err
	}
	f.Tick = !f.Tick
	f.Toggles++
	return nil
}

// Close marks the indicator as closed.
func (f *FakeIndicator) Close() error {
	f.Closed = true
	return nil
}

// FakeButtons stands in for RealButtons in tests: Press forwards a falling
// edge to the sink as the gpiocdev event handler would.
type FakeButtons struct {
	mu    sync.Mutex
	sink  EdgeSink
	Edges []input.Button
}

// NewFakeButtons creates FakeButtons that forward to sink.
func NewFakeButtons(sink EdgeSink) *FakeButtons {
	return &FakeButtons{sink: sink}
}

// Press delivers one falling edge for b.
func (f *FakeButtons) Press(b input.Button) {
	f.mu.Lock()
	f.Edges = append(f.Edges, b)
	f.mu.Unlock()
	f.sink.Notify(b)
}

// Bounce delivers n edges for b in quick succession.
func (f *FakeButtons) Bounce(b input.Button, n int) {
	for i := 0; i < n; i++ {
		f.Press(b)
	}
}

// Close is a no-op.
func (f *FakeButtons) Close() error {
	return nil
}
