// Package status provides a thread-safe status tracker for the current-logger daemon.
// It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/current-logger/internal/logic"
	"github.com/sweeney/current-logger/internal/transfer"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing the network detection code from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Collector   string
	Sink        string
	Broker      string
	WSBroker    string // websocket broker URL for the live page (empty = disabled)
	HTTPAddr    string
	HeartbeatMs int64
	SettleMs    int64
	ChunkSize   int
	Capacity    int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Mode          logic.Mode
	Interval      time.Duration
	Buffered      int
	Watermark     int
	Counts        logic.EventCounts
	LastSample    logic.Sample
	HasSample     bool
	Session       string
	LinkUp        bool
	MQTTConnected bool
	Transfer      transfer.Stats
	SensorErrors  int
	LastError     string
	StartTime     time.Time
	Now           time.Time
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Mode:      logic.ModeStopped,
			Interval:  logic.Intervals[0],
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the scheduler state and buffer fill.
// Called from the sampling loop on every tick.
func (t *Tracker) Update(mode logic.Mode, interval time.Duration, buffered, watermark int, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Mode = mode
	t.snap.Interval = interval
	t.snap.Buffered = buffered
	t.snap.Watermark = watermark
	t.snap.Counts = counts
	t.mu.Unlock()
}

// RecordSample stores the most recent reading.
func (t *Tracker) RecordSample(s logic.Sample) {
	t.mu.Lock()
	t.snap.LastSample = s
	t.snap.HasSample = true
	t.mu.Unlock()
}

// RecordError counts a sensor failure and keeps its message.
func (t *Tracker) RecordError(err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	t.snap.SensorErrors++
	t.snap.LastError = err.Error()
	t.mu.Unlock()
}

// SetSession sets the id of the current logging session.
func (t *Tracker) SetSession(id string) {
	t.mu.Lock()
	t.snap.Session = id
	t.mu.Unlock()
}

// SetLinkUp sets whether the collector link is available.
func (t *Tracker) SetLinkUp(up bool) {
	t.mu.Lock()
	t.snap.LinkUp = up
	t.mu.Unlock()
}

// SetTransfer sets the transfer pipeline statistics.
func (t *Tracker) SetTransfer(st transfer.Stats) {
	t.mu.Lock()
	t.snap.Transfer = st
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
