// Package metrics exposes the relay's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatrelay"

type Metrics struct {
	queueLength     prometheus.Gauge
	enqueued        prometheus.Counter
	delivered       prometheus.Counter
	consumerPanics  prometheus.Counter
	lines           *prometheus.CounterVec
	keepalives      prometheus.Counter
	connectionState prometheus.Gauge
	agentReplies    *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		queueLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "length",
			Help:      "Messages waiting in the dispatch queue",
		}),
		enqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "enqueued_total",
			Help:      "Messages appended to the dispatch queue",
		}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "delivered_total",
			Help:      "Messages handed to the consumer",
		}),
		consumerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "consumer_panics_total",
			Help:      "Consumer invocations that panicked",
		}),
		lines: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "twitch",
			Name:      "lines_total",
			Help:      "Inbound IRC lines by classification",
		}, []string{"kind"}),
		keepalives: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "twitch",
			Name:      "pongs_total",
			Help:      "Keepalive replies sent",
		}),
		connectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "twitch",
			Name:      "connection_state",
			Help:      "0 disconnected, 1 connecting, 2 connected",
		}),
		agentReplies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "replies_total",
			Help:      "Agent chat.send outcomes",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) SetQueueLength(n int) {
	if m == nil {
		return
	}
	m.queueLength.Set(float64(n))
}

func (m *Metrics) Enqueued() {
	if m == nil {
		return
	}
	m.enqueued.Inc()
}

func (m *Metrics) Delivered() {
	if m == nil {
		return
	}
	m.delivered.Inc()
}

func (m *Metrics) ConsumerPanicked() {
	if m == nil {
		return
	}
	m.consumerPanics.Inc()
}

func (m *Metrics) Line(kind string) {
	if m == nil {
		return
	}
	m.lines.WithLabelValues(kind).Inc()
}

func (m *Metrics) Pong() {
	if m == nil {
		return
	}
	m.keepalives.Inc()
}

func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(state))
}

// AgentReply records a chat.send outcome: "ok" or "error".
func (m *Metrics) AgentReply(outcome string) {
	if m == nil {
		return
	}
	m.agentReplies.WithLabelValues(outcome).Inc()
}
