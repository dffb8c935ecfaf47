package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the exchange.
// Tracks settlement throughput, escrow outcomes, and the settlement critical
// path latency.
type Metrics struct {
	SettlementsTotal   prometheus.Counter
	SettlementVolume   prometheus.Counter
	EscrowOutcomes     *prometheus.CounterVec
	SettlementDuration prometheus.Histogram
}

// New creates a new Metrics instance with all exchange metrics registered.
func New() *Metrics {
	return &Metrics{
		SettlementsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provena_exchange_settlements_total",
			Help: "Total completed escrow settlements",
		}),
		SettlementVolume: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provena_exchange_settlement_volume_total",
			Help: "Total settled volume in base units",
		}),
		EscrowOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provena_exchange_escrow_outcomes_total",
			Help: "Escrow terminal outcomes by kind",
		}, []string{"outcome"}),
		SettlementDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "provena_exchange_settlement_duration_seconds",
			Help:    "Duration of the settlement critical path",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveSettlement records one completed settlement.
func (m *Metrics) ObserveSettlement(price uint64, start time.Time) {
	m.SettlementsTotal.Inc()
	m.SettlementVolume.Add(float64(price))
	m.EscrowOutcomes.WithLabelValues("completed").Inc()
	m.SettlementDuration.Observe(time.Since(start).Seconds())
}

// ObserveOutcome records a non-settlement terminal outcome.
func (m *Metrics) ObserveOutcome(outcome string) {
	m.EscrowOutcomes.WithLabelValues(outcome).Inc()
}
