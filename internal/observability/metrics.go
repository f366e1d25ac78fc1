package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/service"
)

var _ service.Metrics = (*Prometheus)(nil)

// Prometheus counts transitions and notifications by outcome. The outcome
// label is the error code, or "ok".
type Prometheus struct {
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transitions_total",
			Help: "Transaction lifecycle transitions by kind, operation and outcome.",
		}, []string{"kind", "op", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification dispatches by type and outcome.",
		}, []string{"type", "outcome"}),
	}
	for _, c := range []prometheus.Collector{p.transitions, p.notifications} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) Transition(kind lifecycle.Kind, op lifecycle.Op, err error) {
	p.transitions.WithLabelValues(string(kind), string(op), outcome(err)).Inc()
}

func (p *Prometheus) Notification(typ string, err error) {
	p.notifications.WithLabelValues(typ, outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return lifecycle.Code(err)
}
