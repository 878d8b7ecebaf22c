// Package metrics exposes the Prometheus collectors of the realtime core.
//
// All methods are nil-safe so components can run without metrics in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livedeck"

// Metrics groups the collectors registered by New.
type Metrics struct {
	reg *prometheus.Registry

	joins             *prometheus.CounterVec
	leaves            *prometheus.CounterVec
	controlActions    *prometheus.CounterVec
	abuseRejections   *prometheus.CounterVec
	broadcastSent     *prometheus.CounterVec
	broadcastDropped  *prometheus.CounterVec
	participantsEvict prometheus.Counter
	wsConnections     prometheus.Gauge
}

// New registers every collector on a fresh registry (plus Go/process collectors).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Participant join attempts by result.",
		}, []string{"result"}),
		leaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaves_total",
			Help:      "Participant departures by reason.",
		}, []string{"reason"}),
		controlActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_actions_total",
			Help:      "Presenter control actions by action and result.",
		}, []string{"action", "result"}),
		abuseRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abuse_rejections_total",
			Help:      "Join attempts rejected by the abuse guard.",
		}, []string{"reason"}),
		broadcastSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_delivered_total",
			Help:      "Broadcast envelopes enqueued to connections, by audience.",
		}, []string{"audience"}),
		broadcastDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Broadcast envelopes dropped under backpressure, by audience.",
		}, []string{"audience"}),
		participantsEvict: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participants_evicted_total",
			Help:      "Participant sessions evicted by liveness cleanup.",
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.joins,
		m.leaves,
		m.controlActions,
		m.abuseRejections,
		m.broadcastSent,
		m.broadcastDropped,
		m.participantsEvict,
		m.wsConnections,
	)
	return m
}

// Registry returns the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// RegisterGaugeFunc exposes a value computed at scrape time.
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) {
	if m == nil || fn == nil {
		return
	}
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

func (m *Metrics) Join(result string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(result).Inc()
}

func (m *Metrics) Leave(reason string) {
	if m == nil {
		return
	}
	m.leaves.WithLabelValues(reason).Inc()
}

func (m *Metrics) ControlAction(action, result string) {
	if m == nil {
		return
	}
	m.controlActions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) AbuseRejected(reason string) {
	if m == nil {
		return
	}
	m.abuseRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) BroadcastDelivered(audience string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.broadcastSent.WithLabelValues(audience).Add(float64(n))
}

func (m *Metrics) BroadcastDropped(audience string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.broadcastDropped.WithLabelValues(audience).Add(float64(n))
}

func (m *Metrics) ParticipantsEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.participantsEvict.Add(float64(n))
}

func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}
