package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"provena/internal/compliance/models"
)

// Metrics provides observability for the compliance engine.
// Tracks decision outcomes and rejection reasons by coarse code.
type Metrics struct {
	DecisionsTotal  *prometheus.CounterVec
	RejectionsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all compliance metrics registered.
func New() *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provena_compliance_decisions_total",
			Help: "Total transfer eligibility decisions by outcome",
		}, []string{"outcome"}),
		RejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provena_compliance_rejections_total",
			Help: "Total transfer rejections by coarse code",
		}, []string{"code"}),
	}
}

// ObserveDecision records one decision outcome.
func (m *Metrics) ObserveDecision(decision models.Decision) {
	if decision.Allowed {
		m.DecisionsTotal.WithLabelValues("allowed").Inc()
		return
	}
	m.DecisionsTotal.WithLabelValues("rejected").Inc()
	m.RejectionsTotal.WithLabelValues(string(decision.Code)).Inc()
}
