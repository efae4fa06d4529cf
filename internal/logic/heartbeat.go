package logic

import "time"

// HeartbeatData is returned when a heartbeat is due.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}

// Heartbeat tracks when the last periodic status event was emitted.
type Heartbeat struct {
	start time.Time
	last  time.Time
}

// NewHeartbeat creates a Heartbeat whose first period starts at start.
func NewHeartbeat(start time.Time) *Heartbeat {
	return &Heartbeat{start: start, last: start}
}

// Check returns heartbeat data if interval has elapsed since the last
// heartbeat (or startup). Returns nil if not yet due or if interval is <= 0.
func (h *Heartbeat) Check(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(h.last) < interval {
		return nil
	}
	h.last = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.start),
	}
}
