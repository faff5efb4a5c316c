// Package metrics exposes relay counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons for signaling frames that were not delivered.
const (
	DropNoTarget     = "no_target"
	DropBackpressure = "backpressure"
	DropInvalid      = "invalid"
	DropRateLimited  = "rate_limited"
)

type Metrics struct {
	reg prometheus.Gatherer

	Events      *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	Rooms       prometheus.Gauge
	Connections prometheus.Gauge
	CountSync   *prometheus.CounterVec
}

// New registers the relay collectors on reg. Pass prometheus.NewRegistry()
// in tests to keep instances isolated.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		reg: reg,
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studyroom",
			Name:      "signal_events_total",
			Help:      "Inbound signaling events by type.",
		}, []string{"event"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studyroom",
			Name:      "signal_dropped_total",
			Help:      "Signaling frames not delivered, by reason.",
		}, []string{"reason"}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "studyroom",
			Name:      "rooms_active",
			Help:      "Rooms with at least one member.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "studyroom",
			Name:      "connections_active",
			Help:      "Open signaling connections.",
		}),
		CountSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studyroom",
			Name:      "count_sync_total",
			Help:      "Persisted participant count writes by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.Events, m.Dropped, m.Rooms, m.Connections, m.CountSync)
	return m
}

func (m *Metrics) Event(name string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(name).Inc()
}

func (m *Metrics) Drop(reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.Rooms.Set(float64(n))
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(n))
}

func (m *Metrics) CountSyncResult(result string) {
	if m == nil {
		return
	}
	m.CountSync.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
