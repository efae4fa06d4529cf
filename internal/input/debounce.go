// Package input turns raw button edges into debounced, read-and-clear press events.
package input

import (
	"context"
	"sync"
	"time"
)

// Button identifies one of the two push buttons.
type Button int

const (
	StartStop Button = iota
	IntervalCycle
	numButtons
)

func (b Button) String() string {
	switch b {
	case StartStop:
		return "start_stop"
	case IntervalCycle:
		return "interval_cycle"
	default:
		return "unknown"
	}
}

const (
	// SettleTime is how long after the first edge a press is accepted.
	SettleTime = 300 * time.Millisecond

	// PollInterval is the longest the worker waits between settle checks.
	PollInterval = 10 * time.Millisecond

	edgeQueue = 16
)

// Debouncer accepts a press once SettleTime has elapsed since its first edge.
// Edges arriving inside the window are absorbed.
type Debouncer struct {
	mu      sync.Mutex
	pressed [numButtons]bool

	// first edge time per button; only touched by the worker goroutine
	pending [numButtons]time.Time

	edges  chan Button
	settle time.Duration
	now    func() time.Time
}

// NewDebouncer creates a Debouncer using SettleTime and the wall clock.
func NewDebouncer() *Debouncer {
	return &Debouncer{
		edges:  make(chan Button, edgeQueue),
		settle: SettleTime,
		now:    time.Now,
	}
}

// Notify records an edge on b. It never blocks; edges beyond the queue are
// dropped since a pending press already covers them.
func (d *Debouncer) Notify(b Button) {
	if b < 0 || b >= numButtons {
		return
	}
	select {
	case d.edges <- b:
	default:
	}
}

// Poll reports whether a debounced press of b occurred since the last Poll
// of b, and clears it.
func (d *Debouncer) Poll(b Button) bool {
	if b < 0 || b >= numButtons {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pressed[b]
	d.pressed[b] = false
	return p
}

// Run processes edges until ctx is cancelled.
func (d *Debouncer) Run(ctx context.Context) {
	timer := time.NewTimer(PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case b := <-d.edges:
			d.observe(b, d.now())
		case <-timer.C:
		}
		d.settleDue(d.now())

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(PollInterval)
	}
}

// observe starts the settle window for b unless one is already open.
func (d *Debouncer) observe(b Button, now time.Time) {
	if d.pending[b].IsZero() {
		d.pending[b] = now
	}
}

// settleDue raises the press flag for every window that has elapsed.
func (d *Debouncer) settleDue(now time.Time) {
	var due [numButtons]bool
	fired := false
	for b := range d.pending {
		if d.pending[b].IsZero() {
			continue
		}
		if now.Sub(d.pending[b]) >= d.settle {
			d.pending[b] = time.Time{}
			due[b] = true
			fired = true
		}
	}
	if !fired {
		return
	}

	d.mu.Lock()
	for b, ok := range due {
		if ok {
			d.pressed[b] = true
		}
	}
	d.mu.Unlock()
}
