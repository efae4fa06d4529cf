// Package samplelog provides the bounded, ordered in-memory sample log.
package samplelog

import "github.com/sweeney/current-logger/internal/logic"

// Log is an append-only FIFO of samples with a fixed capacity.
// Samples are appended at the tail and removed only from the head.
// Not safe for concurrent use: the sampling loop owns it.
type Log struct {
	samples  []logic.Sample
	capacity int
}

// New creates an empty Log. capacity <= 0 selects logic.Capacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = logic.Capacity
	}
	return &Log{
		samples:  make([]logic.Sample, 0, capacity),
		capacity: capacity,
	}
}

// Append adds s at the tail. It does not enforce capacity; callers stop
// appending once Full reports true.
func (l *Log) Append(s logic.Sample) {
	l.samples = append(l.samples, s)
}

// DrainFront discards the first min(n, Len()) samples.
func (l *Log) DrainFront(n int) {
	if n <= 0 {
		return
	}
	if n >= len(l.samples) {
		l.samples = l.samples[:0]
		return
	}
	// Shift in place so the backing array never grows past capacity.
	k := copy(l.samples, l.samples[n:])
	l.samples = l.samples[:k]
}

// Len returns the number of buffered samples.
func (l *Log) Len() int {
	return len(l.samples)
}

// Cap returns the configured capacity.
func (l *Log) Cap() int {
	return l.capacity
}

// Full reports whether the log holds capacity samples or more.
func (l *Log) Full() bool {
	return len(l.samples) >= l.capacity
}

// Snapshot returns a read-only view of the buffered samples in order.
// The view is valid until the next Append, DrainFront or Clear.
func (l *Log) Snapshot() []logic.Sample {
	return l.samples[:len(l.samples):len(l.samples)]
}

// Clear removes all samples.
func (l *Log) Clear() {
	l.samples = l.samples[:0]
}

// Watermark returns the fill level as a percentage of capacity.
func (l *Log) Watermark() int {
	return len(l.samples) * 100 / l.capacity
}
