package status

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/current-logger/internal/logic"
	"github.com/sweeney/current-logger/internal/transfer"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Collector: "10.0.0.5:3001", Sink: "http", HTTPAddr: ":80", Capacity: logic.Capacity}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Mode != logic.ModeStopped {
		t.Errorf("Mode: got %q, want STOPPED", snap.Mode)
	}
	if snap.Interval != 4*time.Millisecond {
		t.Errorf("Interval: got %v, want 4ms", snap.Interval)
	}
	if snap.Config.Collector != "10.0.0.5:3001" {
		t.Errorf("Config.Collector: got %q", snap.Config.Collector)
	}
	if snap.HasSample {
		t.Error("expected no sample initially")
	}
	if snap.LinkUp || snap.MQTTConnected {
		t.Error("expected link and MQTT down initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(logic.ModeLogging, 49*time.Millisecond, 1024, 25, logic.EventCounts{Starts: 3, AutoStops: 1})

	snap := tr.Snapshot()
	if snap.Mode != logic.ModeLogging {
		t.Errorf("Mode: got %q, want LOGGING", snap.Mode)
	}
	if snap.Interval != 49*time.Millisecond {
		t.Errorf("Interval: got %v", snap.Interval)
	}
	if snap.Buffered != 1024 || snap.Watermark != 25 {
		t.Errorf("buffer: got %d (%d%%)", snap.Buffered, snap.Watermark)
	}
	if snap.Counts.Starts != 3 || snap.Counts.AutoStops != 1 {
		t.Errorf("Counts: %+v", snap.Counts)
	}
}

func TestRecordSampleAndError(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.RecordSample(logic.Sample{Voltage: 12.1, Timestamp: 40})
	tr.RecordError(errors.New("read current: i2c nack"))
	tr.RecordError(nil)

	snap := tr.Snapshot()
	if !snap.HasSample || snap.LastSample.Voltage != 12.1 {
		t.Errorf("LastSample: %+v", snap.LastSample)
	}
	if snap.SensorErrors != 1 {
		t.Errorf("SensorErrors: got %d, want 1", snap.SensorErrors)
	}
	if snap.LastError != "read current: i2c nack" {
		t.Errorf("LastError: got %q", snap.LastError)
	}
}

func TestSetters(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetSession("abc")
	tr.SetLinkUp(true)
	tr.SetMQTTConnected(true)
	tr.SetTransfer(transfer.Stats{Claims: 4, SamplesLost: 64})
	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Session != "abc" {
		t.Errorf("Session: got %q", snap.Session)
	}
	if !snap.LinkUp || !snap.MQTTConnected {
		t.Error("expected link and MQTT up")
	}
	if snap.Transfer.Claims != 4 || snap.Transfer.SamplesLost != 64 {
		t.Errorf("Transfer: %+v", snap.Transfer)
	}
	if snap.Network == nil || snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network: %+v", snap.Network)
	}

	tr.SetLinkUp(false)
	if tr.Snapshot().LinkUp {
		t.Error("expected link down")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(logic.ModeLogging, 4*time.Millisecond, 10, 0, logic.EventCounts{Starts: 1})

	snap1 := tr.Snapshot()

	tr.Update(logic.ModeStopped, 9*time.Millisecond, 0, 0, logic.EventCounts{Starts: 1, Stops: 1})

	if snap1.Mode != logic.ModeLogging {
		t.Error("snapshot should be a copy; Mode was modified")
	}
	if snap1.Buffered != 10 {
		t.Error("snapshot should be a copy; Buffered was modified")
	}
}

func testSnapshot() Snapshot {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return Snapshot{
		Mode:          logic.ModeLogging,
		Interval:      99 * time.Millisecond,
		Buffered:      2048,
		Watermark:     50,
		Counts:        logic.EventCounts{Starts: 5, Stops: 2, AutoStops: 1, IntervalChanges: 3},
		LastSample:    logic.Sample{Voltage: 12.5, Current: 0.25, Power: 3.125, Battery: 4.1, Timestamp: 396},
		HasSample:     true,
		Session:       "6f1c",
		LinkUp:        true,
		MQTTConnected: true,
		Transfer:      transfer.Stats{Claims: 10, ChunksDelivered: 9, ChunksFailed: 1, SamplesDelivered: 576, SamplesLost: 64, LastError: "timeout"},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		Config: Config{
			Collector:   "10.0.0.5:3001",
			Sink:        "http",
			Broker:      "tcp://localhost:1883",
			HTTPAddr:    ":80",
			HeartbeatMs: 900000,
			SettleMs:    300,
			ChunkSize:   64,
			Capacity:    logic.Capacity,
		},
	}
}

func TestFormatJSON(t *testing.T) {
	data := FormatJSON(testSnapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Mode != "LOGGING" {
		t.Errorf("Mode: got %q, want LOGGING", s.Mode)
	}
	if s.IntervalMs != 99 {
		t.Errorf("IntervalMs: got %d, want 99", s.IntervalMs)
	}
	if s.Buffer.Samples != 2048 || s.Buffer.Capacity != 4095 || s.Buffer.WatermarkPct != 50 {
		t.Errorf("Buffer: %+v", s.Buffer)
	}
	if s.LastSample == nil || s.LastSample.Timestamp != 396 {
		t.Errorf("LastSample: %+v", s.LastSample)
	}
	if !s.Link.Up || s.Link.Collector != "10.0.0.5:3001" {
		t.Errorf("Link: %+v", s.Link)
	}
	if s.Transfer.SamplesLost != 64 || s.Transfer.LastError != "timeout" {
		t.Errorf("Transfer: %+v", s.Transfer)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if s.Counts.Starts != 5 || s.Counts.AutoStops != 1 || s.Counts.IntervalChanges != 3 {
		t.Errorf("Counts: %+v", s.Counts)
	}
	if s.Config.SettleMs != 300 || s.Config.ChunkSize != 64 {
		t.Errorf("Config: %+v", s.Config)
	}
	// Event and Reason should be omitted
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected empty event/reason for web format, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONWithoutSample(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(FormatJSON(snap), &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["status"]["last_sample"]; ok {
		t.Error("last_sample should be omitted before the first reading")
	}
	if raw["status"]["mode"] != "UNKNOWN" {
		t.Errorf("mode: got %v, want UNKNOWN", raw["status"]["mode"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if parsed.Status.Buffer.Samples != 2048 {
		t.Errorf("Buffer.Samples: got %d", parsed.Status.Buffer.Samples)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := testSnapshot()
	snap.Network = &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(logic.ModeLogging, 4*time.Millisecond, i, i/40, logic.EventCounts{Starts: i})
			tr.RecordSample(logic.Sample{Timestamp: uint32(i)})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
