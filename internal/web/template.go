package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/current-logger/internal/mqtt"
	"github.com/sweeney/current-logger/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"ms": func(d time.Duration) int64 {
		return d.Milliseconds()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if not .Config.WSBroker}}<meta http-equiv="refresh" content="5">
{{end}}<title>Current Logger</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.logging { color: green; font-weight: bold; }
.stopped { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.warn { color: orange; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Current Logger{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Logging</h2>
<table>
<tr><th>Mode</th><td id="mode" class="{{if eq (printf "%s" .Mode) "LOGGING"}}logging{{else}}stopped{{end}}">{{.Mode}}</td></tr>
<tr><th>Interval</th><td id="interval">{{ms .Interval}}ms</td></tr>
<tr><th>Buffered</th><td id="buffered" class="{{if ge .Watermark 90}}warn{{end}}">{{.Buffered}} / {{.Config.Capacity}} ({{.Watermark}}%)</td></tr>
{{if .Session}}<tr><th>Session</th><td>{{.Session}}</td></tr>{{end}}
</table>

<h2>Last Reading</h2>
<table>
{{if .HasSample}}<tr><th>Voltage</th><td>{{printf "%.5f" .LastSample.Voltage}} V</td></tr>
<tr><th>Current</th><td>{{printf "%.5f" .LastSample.Current}} A</td></tr>
<tr><th>Power</th><td>{{printf "%.5f" .LastSample.Power}} W</td></tr>
<tr><th>Battery</th><td>{{printf "%.2f" .LastSample.Battery}} V</td></tr>
<tr><th>Timestamp</th><td>{{.LastSample.Timestamp}}ms</td></tr>
{{else}}<tr><th>Reading</th><td>none yet</td></tr>{{end}}
<tr><th>Sensor errors</th><td class="{{if .SensorErrors}}warn{{end}}">{{.SensorErrors}}{{if .LastError}} ({{.LastError}}){{end}}</td></tr>
</table>

<h2>Transfer</h2>
<table>
<tr><th>Link</th><td class="{{if .LinkUp}}connected{{else}}disconnected{{end}}">{{if .LinkUp}}up{{else}}down{{end}}</td></tr>
<tr><th>Collector</th><td>{{.Config.Collector}} ({{.Config.Sink}})</td></tr>
<tr><th>Delivered</th><td>{{.Transfer.SamplesDelivered}} samples in {{.Transfer.ChunksDelivered}} chunks</td></tr>
<tr><th>Lost</th><td class="{{if .Transfer.SamplesLost}}warn{{end}}">{{.Transfer.SamplesLost}} samples in {{.Transfer.ChunksFailed}} chunks</td></tr>
{{if .Transfer.LastError}}<tr><th>Last error</th><td>{{.Transfer.LastError}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Starts</th><td id="count-LOGGING_START">{{.Counts.Starts}}</td></tr>
<tr><th>Stops</th><td id="count-LOGGING_STOP">{{.Counts.Stops}}</td></tr>
<tr><th>Auto stops</th><td id="count-AUTO_STOP">{{.Counts.AutoStops}}</td></tr>
<tr><th>Interval changes</th><td id="count-INTERVAL_CHANGE">{{.Counts.IntervalChanges}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Settle</th><td>{{.Config.SettleMs}}ms</td></tr>
<tr><th>Chunk</th><td>{{.Config.ChunkSize}} samples</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Topic}}";
  var dot = document.getElementById("live-dot");
  var modeEl = document.getElementById("mode");
  var intervalEl = document.getElementById("interval");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function bump(event) {
    var el = document.getElementById("count-" + event);
    if (el) {
      el.textContent = (parseInt(el.textContent, 10) || 0) + 1;
    }
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.logger) {
        modeEl.textContent = msg.logger.mode;
        modeEl.className = msg.logger.mode === "LOGGING" ? "logging" : "stopped";
        intervalEl.textContent = msg.logger.interval_ms + "ms";
        bump(msg.logger.event);
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Topic  string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Topic:    mqtt.Topic,
	}
	return indexTmpl.Execute(w, data)
}
