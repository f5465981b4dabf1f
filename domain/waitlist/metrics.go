package waitlist

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeEnrolled = "enrolled"
	outcomeConflict = "conflict"
	outcomeInvalid  = "invalid"
	outcomeError    = "error"
)

type Metrics struct {
	enrollments *prometheus.CounterVec
}

// NewMetrics registers on reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		enrollments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_enrollments_total",
				Help: "Join attempts by outcome.",
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.enrollments)
	}
	return m
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome).Inc()
}
