// Package transfer ships buffered samples to the remote collector in bounded
// chunks, with at most one delivery in flight.
//
// Delivery is at-most-once: the caller evicts a chunk from its log as soon as
// Claim accepts it, and a failed delivery is dropped rather than requeued.
package transfer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/current-logger/internal/logic"
	"github.com/sweeney/current-logger/internal/metrics"
)

const (
	// ChunkSize is the most samples claimed for one delivery.
	ChunkSize = 64

	// PollInterval is the worker's wake cadence when not notified.
	PollInterval = 100 * time.Millisecond
)

// Sender delivers one serialized payload.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// Stats summarises pipeline activity.
type Stats struct {
	InFlight         bool
	Claims           int
	ChunksDelivered  int
	ChunksFailed     int
	SamplesDelivered int
	SamplesLost      int
	LastError        string
	LastDelivery     time.Time
}

// Pipeline holds at most one claimed chunk and delivers it in the background.
type Pipeline struct {
	mu       sync.Mutex
	payload  []byte
	claimed  int
	inFlight bool
	stats    Stats

	wake    chan struct{}
	sender  Sender
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewPipeline creates an idle pipeline. m may be nil.
func NewPipeline(sender Sender, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		wake:    make(chan struct{}, 1),
		sender:  sender,
		logger:  logger,
		metrics: m,
	}
}

// Claim serializes up to ChunkSize samples from the head of samples and
// marks the pipeline in flight. It returns the number claimed, or 0 if a
// delivery is already in flight or samples is empty. The caller must evict
// exactly that many samples from its log.
func (p *Pipeline) Claim(samples []logic.Sample) int {
	if len(samples) == 0 {
		return 0
	}

	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return 0
	}
	n := min(len(samples), ChunkSize)
	body, err := FormatPayload(samples[:n])
	if err != nil {
		p.mu.Unlock()
		p.logger.Error("encode chunk", "samples", n, "error", err)
		return 0
	}
	p.payload = body
	p.claimed = n
	p.inFlight = true
	p.stats.Claims++
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}

	if len(samples) > n {
		p.logger.Debug("chunked transfer", "claimed", n, "remaining", len(samples)-n)
	}
	return n
}

// InFlight reports whether a claimed chunk is awaiting delivery.
func (p *Pipeline) InFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Stats returns a copy of the pipeline statistics.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.InFlight = p.inFlight
	return s
}

// Run delivers claimed chunks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	p.logger.Info("transfer worker started")
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-ticker.C:
		}
		p.deliver(ctx)
	}
}

// deliver attempts the in-flight chunk once. The lock is not held during Send.
// In flight is cleared whatever the outcome. Returns false if idle.
func (p *Pipeline) deliver(ctx context.Context) bool {
	p.mu.Lock()
	if !p.inFlight {
		p.mu.Unlock()
		return false
	}
	payload, n := p.payload, p.claimed
	p.mu.Unlock()

	start := time.Now()
	err := p.sender.Send(ctx, payload)
	elapsed := time.Since(start)

	p.mu.Lock()
	p.inFlight = false
	p.payload = nil
	p.claimed = 0
	if err != nil {
		p.stats.ChunksFailed++
		p.stats.SamplesLost += n
		p.stats.LastError = err.Error()
	} else {
		p.stats.ChunksDelivered++
		p.stats.SamplesDelivered += n
		p.stats.LastDelivery = start.Add(elapsed)
	}
	p.mu.Unlock()

	p.metrics.Delivery(n, elapsed.Seconds(), err)
	if err != nil {
		p.logger.Warn("delivery failed, chunk dropped", "samples", n, "error", err)
	} else {
		p.logger.Debug("chunk delivered", "samples", n, "bytes", len(payload), "duration", elapsed)
	}
	return true
}
