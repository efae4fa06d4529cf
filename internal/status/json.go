package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	IntervalMs    int64        `json:"interval_ms"`
	Session       string       `json:"session,omitempty"`
	Buffer        BufferJSON   `json:"buffer"`
	LastSample    *SampleJSON  `json:"last_sample,omitempty"`
	Link          LinkJSON     `json:"link"`
	Transfer      TransferJSON `json:"transfer"`
	Sensor        SensorJSON   `json:"sensor"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// BufferJSON reports sample log fill.
type BufferJSON struct {
	Samples      int `json:"samples"`
	Capacity     int `json:"capacity"`
	WatermarkPct int `json:"watermark_pct"`
}

// SampleJSON is the most recent reading.
type SampleJSON struct {
	Voltage   float32 `json:"voltage"`
	Current   float32 `json:"current"`
	Power     float32 `json:"power"`
	Battery   float32 `json:"bat"`
	Timestamp uint32  `json:"timestamp"`
}

// LinkJSON reports collector reachability.
type LinkJSON struct {
	Up        bool   `json:"up"`
	Collector string `json:"collector"`
	Sink      string `json:"sink"`
}

// TransferJSON is the JSON representation of transfer statistics.
type TransferJSON struct {
	InFlight         bool   `json:"in_flight"`
	Claims           int    `json:"claims"`
	ChunksDelivered  int    `json:"chunks_delivered"`
	ChunksFailed     int    `json:"chunks_failed"`
	SamplesDelivered int    `json:"samples_delivered"`
	SamplesLost      int    `json:"samples_lost"`
	LastError        string `json:"last_error,omitempty"`
	LastDelivery     string `json:"last_delivery,omitempty"`
}

// SensorJSON reports sensor read failures.
type SensorJSON struct {
	Errors    int    `json:"errors"`
	LastError string `json:"last_error,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Starts          int `json:"starts"`
	Stops           int `json:"stops"`
	AutoStops       int `json:"auto_stops"`
	IntervalChanges int `json:"interval_changes"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Collector   string `json:"collector"`
	Sink        string `json:"sink"`
	Broker      string `json:"broker"`
	WSBroker    string `json:"ws_broker,omitempty"`
	HTTPAddr    string `json:"http_addr"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	SettleMs    int64  `json:"settle_ms"`
	ChunkSize   int    `json:"chunk_size"`
	Capacity    int    `json:"capacity"`
}

func buildInner(snap Snapshot) StatusInner {
	mode := string(snap.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}

	inner := StatusInner{
		Mode:       mode,
		IntervalMs: snap.Interval.Milliseconds(),
		Session:    snap.Session,
		Buffer: BufferJSON{
			Samples:      snap.Buffered,
			Capacity:     snap.Config.Capacity,
			WatermarkPct: snap.Watermark,
		},
		Link: LinkJSON{Up: snap.LinkUp, Collector: snap.Config.Collector, Sink: snap.Config.Sink},
		Transfer: TransferJSON{
			InFlight:         snap.Transfer.InFlight,
			Claims:           snap.Transfer.Claims,
			ChunksDelivered:  snap.Transfer.ChunksDelivered,
			ChunksFailed:     snap.Transfer.ChunksFailed,
			SamplesDelivered: snap.Transfer.SamplesDelivered,
			SamplesLost:      snap.Transfer.SamplesLost,
			LastError:        snap.Transfer.LastError,
		},
		Sensor:        SensorJSON{Errors: snap.SensorErrors, LastError: snap.LastError},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Starts:          snap.Counts.Starts,
			Stops:           snap.Counts.Stops,
			AutoStops:       snap.Counts.AutoStops,
			IntervalChanges: snap.Counts.IntervalChanges,
		},
		Config: ConfigJSON{
			Collector:   snap.Config.Collector,
			Sink:        snap.Config.Sink,
			Broker:      snap.Config.Broker,
			WSBroker:    snap.Config.WSBroker,
			HTTPAddr:    snap.Config.HTTPAddr,
			HeartbeatMs: snap.Config.HeartbeatMs,
			SettleMs:    snap.Config.SettleMs,
			ChunkSize:   snap.Config.ChunkSize,
			Capacity:    snap.Config.Capacity,
		},
	}
	if !snap.Transfer.LastDelivery.IsZero() {
		inner.Transfer.LastDelivery = snap.Transfer.LastDelivery.UTC().Format(time.RFC3339)
	}
	if snap.HasSample {
		s := snap.LastSample
		inner.LastSample = &SampleJSON{
			Voltage:   s.Voltage,
			Current:   s.Current,
			Power:     s.Power,
			Battery:   s.Battery,
			Timestamp: s.Timestamp,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
