package notify

import "github.com/prometheus/client_golang/prometheus"

const (
	TargetConfirmation = "confirmation"
	TargetAdminAlert   = "admin_alert"
	TargetSignupEvent  = "signup_event"

	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

type Metrics struct {
	notifications *prometheus.CounterVec
}

// NewMetrics registers on reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_notifications_total",
				Help: "Waitlist notification dispatches by target and outcome.",
			},
			[]string{"target", "outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.notifications)
	}
	return m
}

func (m *Metrics) observe(target, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(target, outcome).Inc()
}
