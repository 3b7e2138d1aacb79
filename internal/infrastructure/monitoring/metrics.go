// Package monitoring exposes kernel telemetry as Prometheus metrics.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the kernel.
type Metrics struct {
	// Shell metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	JobsActive      prometheus.Gauge

	// Filesystem metrics
	VFSBytes prometheus.Gauge

	// Session metrics
	SessionsActive   prometheus.Gauge
	SnapshotsSaved   prometheus.Counter
	SnapshotsLoaded  prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates the metrics collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		CommandsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_commands_total",
				Help: "Total number of commands executed",
			},
			[]string{"command", "status"},
		),
		CommandDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kernel_command_duration_seconds",
				Help:    "Command execution duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"command"},
		),
		JobsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_jobs_active",
				Help: "Number of running background jobs",
			},
		),

		VFSBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_vfs_bytes",
				Help: "Accounted size of the virtual filesystem in bytes",
			},
		),

		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_sessions_active",
				Help: "Number of attached terminal sessions",
			},
		),
		SnapshotsSaved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_snapshots_saved_total",
				Help: "Total number of session snapshots saved",
			},
		),
		SnapshotsLoaded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_snapshots_loaded_total",
				Help: "Total number of session snapshots restored",
			},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_ws_connections",
				Help: "Number of active WebSocket terminals",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_uptime_seconds",
				Help: "Kernel uptime in seconds",
			},
		),
	}

	go m.updateUptime()
	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// CommandExecuted records one command dispatch. Implements the executor's
// observer contract.
func (m *Metrics) CommandExecuted(name string, success bool, duration time.Duration) {
	status := "ok"
	if !success {
		status = "error"
	}
	m.CommandsTotal.WithLabelValues(name, status).Inc()
	m.CommandDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// JobsChanged records the active background job count. Implements the
// executor's observer contract.
func (m *Metrics) JobsChanged(active int) {
	m.JobsActive.Set(float64(active))
}

// SetVFSBytes records the filesystem's accounted size.
func (m *Metrics) SetVFSBytes(n int64) {
	m.VFSBytes.Set(float64(n))
}

// SetSessionsActive records the attached session count.
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
}

// IncSnapshotsSaved increments the snapshot save counter.
func (m *Metrics) IncSnapshotsSaved() {
	m.SnapshotsSaved.Inc()
}

// IncSnapshotsLoaded increments the snapshot restore counter.
func (m *Metrics) IncSnapshotsLoaded() {
	m.SnapshotsLoaded.Inc()
}

// RecordWSMessage records a WebSocket message.
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments the WebSocket terminal gauge.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements the WebSocket terminal gauge.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
