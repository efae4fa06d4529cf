// Package metrics exposes logger instrumentation in Prometheus format.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	samplesRecorded  prometheus.Counter
	ticks            prometheus.Counter
	sensorErrors     *prometheus.CounterVec
	bufferDepth      prometheus.Gauge
	loggingActive    prometheus.Gauge
	intervalSeconds  prometheus.Gauge
	chunks           *prometheus.CounterVec
	samplesDelivered prometheus.Counter
	samplesLost      prometheus.Counter
	deliverySeconds  prometheus.Histogram
	schedulerEvents  *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		samplesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "currentlogger_samples_recorded_total",
			Help: "Samples appended to the sample log.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "currentlogger_ticks_total",
			Help: "Sampling ticks executed, logging or not.",
		}),
		sensorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "currentlogger_sensor_errors_total",
			Help: "Sensor field reads that failed, by field.",
		}, []string{"field"}),
		bufferDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "currentlogger_buffer_samples",
			Help: "Samples currently held in the sample log.",
		}),
		loggingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "currentlogger_logging_active",
			Help: "1 while logging, 0 while stopped.",
		}),
		intervalSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "currentlogger_interval_seconds",
			Help: "Current sampling interval.",
		}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "currentlogger_transfer_chunks_total",
			Help: "Transfer chunks by outcome.",
		}, []string{"result"}),
		samplesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "currentlogger_transfer_samples_delivered_total",
			Help: "Samples in chunks the collector acknowledged.",
		}),
		samplesLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "currentlogger_transfer_samples_lost_total",
			Help: "Samples in chunks whose delivery failed.",
		}),
		deliverySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "currentlogger_transfer_duration_seconds",
			Help:    "Duration of one delivery attempt.",
			Buckets: prometheus.DefBuckets,
		}),
		schedulerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "currentlogger_scheduler_events_total",
			Help: "Scheduler transitions by type.",
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		m.samplesRecorded,
		m.ticks,
		m.sensorErrors,
		m.bufferDepth,
		m.loggingActive,
		m.intervalSeconds,
		m.chunks,
		m.samplesDelivered,
		m.samplesLost,
		m.deliverySeconds,
		m.schedulerEvents,
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

func (m *Metrics) SampleRecorded() {
	if m == nil {
		return
	}
	m.samplesRecorded.Inc()
}

func (m *Metrics) SensorError(field string) {
	if m == nil {
		return
	}
	m.sensorErrors.WithLabelValues(field).Inc()
}

func (m *Metrics) SetBuffer(n int) {
	if m == nil {
		return
	}
	m.bufferDepth.Set(float64(n))
}

func (m *Metrics) SetLogging(active bool, intervalSeconds float64) {
	if m == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	m.loggingActive.Set(v)
	m.intervalSeconds.Set(intervalSeconds)
}

func (m *Metrics) SchedulerEvent(typ string) {
	if m == nil {
		return
	}
	m.schedulerEvents.WithLabelValues(typ).Inc()
}

// Delivery records the outcome of one transfer attempt of n samples.
func (m *Metrics) Delivery(n int, seconds float64, err error) {
	if m == nil {
		return
	}
	m.deliverySeconds.Observe(seconds)
	if err != nil {
		m.chunks.WithLabelValues("failed").Inc()
		m.samplesLost.Add(float64(n))
		return
	}
	m.chunks.WithLabelValues("delivered").Inc()
	m.samplesDelivered.Add(float64(n))
}
