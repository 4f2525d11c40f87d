package service

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics are the session counters. A nil *Metrics records nothing.
type Metrics struct {
	Sessions     *prometheus.CounterVec
	Refreshes    *prometheus.CounterVec
	AuthFailures prometheus.Counter
}

// NewMetrics builds the counters and registers them on reg when it is not
// nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitbill",
			Subsystem: "auth",
			Name:      "sessions_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitbill",
			Subsystem: "auth",
			Name:      "refresh_total",
			Help:      "Refresh token rotations by outcome.",
		}, []string{"outcome"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splitbill",
			Subsystem: "auth",
			Name:      "authenticate_failures_total",
			Help:      "Protected requests refused after token verification.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Sessions, m.Refreshes, m.AuthFailures)
	}
	return m
}

func (m *Metrics) session(outcome string) {
	if m != nil {
		m.Sessions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) refresh(outcome string) {
	if m != nil {
		m.Refreshes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) authFailure() {
	if m != nil {
		m.AuthFailures.Inc()
	}
}
