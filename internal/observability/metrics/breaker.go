package metrics

import "github.com/prometheus/client_golang/prometheus"

var breakerStates = []string{"closed", "half-open", "open"}

// BreakerMetrics exposes the current circuit breaker state per dependency as
// a one-hot gauge.
type BreakerMetrics struct {
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

func NewBreakerMetrics(registerer prometheus.Registerer) *BreakerMetrics {
	m := &BreakerMetrics{
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "dependency",
				Name:      "circuit_state",
				Help:      "1 for the current breaker state of a dependency.",
			},
			[]string{"dependency", "state"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dependency",
				Name:      "circuit_transitions_total",
				Help:      "Circuit breaker state transitions.",
			},
			[]string{"dependency", "to"},
		),
	}
	registerer.MustRegister(m.state, m.transitions)
	return m
}

// ObserveStateChange matches resilience.StateObserver.
func (m *BreakerMetrics) ObserveStateChange(dependency, _, to string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == to {
			v = 1
		}
		m.state.WithLabelValues(dependency, s).Set(v)
	}
	m.transitions.WithLabelValues(dependency, to).Inc()
}
