package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "replyflow"

// Metrics holds the Prometheus collectors for event processing.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	inboundEvents   *prometheus.CounterVec
	inboundDuration prometheus.Histogram
	postbackPresses *prometheus.CounterVec
	gateTransitions *prometheus.CounterVec
	dispatchErrors  *prometheus.CounterVec
}

// New creates the collectors on a private registry together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Inbound comment and DM events by type and outcome status.",
		}, []string{"type", "status"}),
		inboundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inbound_event_duration_seconds",
			Help:      "Time spent deciding the dispatch for one inbound event.",
			Buckets:   prometheus.DefBuckets,
		}),
		postbackPresses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postback_presses_total",
			Help:      "Button presses by outcome status.",
		}, []string{"status"}),
		gateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_transitions_total",
			Help:      "Follower gate sessions entering each state.",
		}, []string{"state"}),
		dispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_errors_total",
			Help:      "Events that failed with a decision error, by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inboundEvents,
		m.inboundDuration,
		m.postbackPresses,
		m.gateTransitions,
		m.dispatchErrors,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

func (m *Metrics) InboundEvent(eventType, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.inboundEvents.WithLabelValues(eventType, status).Inc()
	m.inboundDuration.Observe(took.Seconds())
}

func (m *Metrics) PostbackPress(status string) {
	if m == nil {
		return
	}
	m.postbackPresses.WithLabelValues(status).Inc()
}

func (m *Metrics) GateTransition(state string) {
	if m == nil {
		return
	}
	m.gateTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) GateTransitions(state string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.gateTransitions.WithLabelValues(state).Add(float64(n))
}

func (m *Metrics) DispatchError(kind string) {
	if m == nil {
		return
	}
	m.dispatchErrors.WithLabelValues(kind).Inc()
}
