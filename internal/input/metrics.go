package input

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes input pipeline counters to Prometheus.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	events    *prometheus.CounterVec
	consumed  *prometheus.CounterVec
	delivered *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	sequences *prometheus.CounterVec
	panics    *prometheus.CounterVec
}

// NewMetrics creates the input metrics and registers them with reg.
// A nil reg leaves the collectors unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waystorm",
			Subsystem: "input",
			Name:      "events_total",
			Help:      "Input events entering the filter chain, by kind.",
		}, []string{"kind"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waystorm",
			Subsystem: "input",
			Name:      "events_consumed_total",
			Help:      "Input events handled by a filter, by kind and filter.",
		}, []string{"kind", "filter"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waystorm",
			Subsystem: "input",
			Name:      "events_delivered_total",
			Help:      "Input events that reached default client delivery, by kind.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waystorm",
			Subsystem: "input",
			Name:      "events_dropped_total",
			Help:      "Input events dropped before dispatch, by reason.",
		}, []string{"reason"}),
		sequences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waystorm",
			Subsystem: "touch",
			Name:      "sequences_total",
			Help:      "Completed touch sequences, by outcome.",
		}, []string{"outcome"}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waystorm",
			Subsystem: "input",
			Name:      "filter_panics_total",
			Help:      "Recovered panics in input filters.",
		}, []string{"filter"}),
	}
	if reg != nil {
		reg.MustRegister(m.events, m.consumed, m.delivered, m.dropped, m.sequences, m.panics)
	}
	return m
}

func (m *Metrics) recordEvent(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordConsumed(kind, filter string) {
	if m == nil {
		return
	}
	m.consumed.WithLabelValues(kind, filter).Inc()
}

func (m *Metrics) recordDelivered(kind string) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordSequence(outcome string) {
	if m == nil {
		return
	}
	m.sequences.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordPanic(filter string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(filter).Inc()
}
