package bridge

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame outcomes recorded by framesTotal.
const (
	frameApplied     = "applied"
	frameMalformed   = "malformed"
	frameDiscarded   = "discarded"
	frameRateLimited = "rate_limited"
	frameBinary      = "binary"
)

// Queue labels.
const (
	queueActions      = "actions"
	queueSimultaneous = "simultaneous"
)

// Metrics holds Prometheus metric descriptors for the bridge.
type Metrics struct {
	srv       *Server
	startTime time.Time
	registry  *prometheus.Registry

	connectionsOpen   prometheus.Gauge
	connectionsTotal  prometheus.Counter
	framesTotal       *prometheus.CounterVec
	actionEvents      *prometheus.CounterVec
	snapshotsTotal    prometheus.Counter
	queueEvictions    *prometheus.CounterVec
	drainMisses       *prometheus.CounterVec
	queueDepth        *prometheus.GaugeVec
	pressureThreshold prometheus.Gauge
	uptimeSeconds     prometheus.Gauge
	goroutines        prometheus.Gauge
}

// NewMetrics creates the bridge metrics on a private registry so several
// servers can live in one process.
func NewMetrics(srv *Server, startTime time.Time) *Metrics {
	m := &Metrics{
		srv:       srv,
		startTime: startTime,
		registry:  prometheus.NewRegistry(),
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensorbridge_connections_open",
			Help: "Number of currently connected controllers.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensorbridge_connections_total",
			Help: "Total controller connections since start.",
		}),
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorbridge_frames_total",
			Help: "Inbound frames by outcome.",
		}, []string{"result"}),
		actionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorbridge_action_events_total",
			Help: "Discrete action events queued, by action.",
		}, []string{"action"}),
		snapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensorbridge_snapshots_total",
			Help: "Gesture snapshots queued.",
		}),
		queueEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorbridge_queue_evictions_total",
			Help: "Entries dropped from a full output queue.",
		}, []string{"queue"}),
		drainMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorbridge_drain_misses_total",
			Help: "Drains that found the queue locked and returned nothing.",
		}, []string{"queue"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sensorbridge_queue_depth",
			Help: "Current output queue depth.",
		}, []string{"queue"}),
		pressureThreshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensorbridge_pressure_threshold",
			Help: "Current pressure threshold.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensorbridge_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensorbridge_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		m.connectionsOpen,
		m.connectionsTotal,
		m.framesTotal,
		m.actionEvents,
		m.snapshotsTotal,
		m.queueEvictions,
		m.drainMisses,
		m.queueDepth,
		m.pressureThreshold,
		m.uptimeSeconds,
		m.goroutines,
	)

	return m
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Update refreshes the gauges from current server state.
func (m *Metrics) Update() {
	stats := m.srv.Stats()
	m.connectionsOpen.Set(float64(stats.Connections))
	m.queueDepth.WithLabelValues(queueActions).Set(float64(stats.ActionsQueued))
	m.queueDepth.WithLabelValues(queueSimultaneous).Set(float64(stats.SnapshotsQueued))
	m.pressureThreshold.Set(stats.PressureThreshold)
	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		inner.ServeHTTP(w, r)
	})
}

func (m *Metrics) connOpened() {
	m.connectionsTotal.Inc()
}

func (m *Metrics) frame(result string) {
	m.framesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) queued(tr Transition, evictedSnapshot, evictedAction bool) {
	m.snapshotsTotal.Inc()
	if evictedSnapshot {
		m.queueEvictions.WithLabelValues(queueSimultaneous).Inc()
	}
	if tr.Discrete {
		m.actionEvents.WithLabelValues(tr.Action.String()).Inc()
		if evictedAction {
			m.queueEvictions.WithLabelValues(queueActions).Inc()
		}
	}
}

func (m *Metrics) drainMiss(queue string) {
	m.drainMisses.WithLabelValues(queue).Inc()
}
