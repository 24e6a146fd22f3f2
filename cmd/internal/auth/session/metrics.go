package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts middleware outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	outcomes *prometheus.CounterVec
}

// NewMetrics registers the middleware counters on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authjwt",
			Subsystem: "middleware",
			Name:      "outcomes_total",
			Help:      "Auth middleware decisions by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		if err := reg.Register(m.outcomes); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(o Outcome) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(string(o)).Inc()
}
