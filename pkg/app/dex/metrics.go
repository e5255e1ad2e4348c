package dex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered on a private registry so several apps (tests, replays)
// can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	ordersSubmitted *prometheus.CounterVec
	ordersRejected  *prometheus.CounterVec
	orderStates     *prometheus.CounterVec
	trades          *prometheus.CounterVec
	tradedQty       *prometheus.CounterVec
	deposits        *prometheus.CounterVec
	withdrawals     *prometheus.CounterVec
	matchDuration   *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ordersSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotdex",
			Subsystem: "engine",
			Name:      "orders_submitted_total",
			Help:      "Orders submitted, by type and side",
		}, []string{"type", "side"}),
		ordersRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotdex",
			Subsystem: "engine",
			Name:      "orders_rejected_total",
			Help:      "Orders rejected at admission, by reason",
		}, []string{"reason"}),
		orderStates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotdex",
			Subsystem: "engine",
			Name:      "orders_processed_total",
			Help:      "Admitted orders, by final state",
		}, []string{"state"}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotdex",
			Subsystem: "engine",
			Name:      "trades_total",
			Help:      "Executed trades",
		}, []string{"asset"}),
		tradedQty: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotdex",
			Subsystem: "engine",
			Name:      "traded_quantity_total",
			Help:      "Base quantity traded",
		}, []string{"asset"}),
		deposits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotdex",
			Subsystem: "ledger",
			Name:      "deposits_total",
			Help:      "Deposited amount",
		}, []string{"asset"}),
		withdrawals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotdex",
			Subsystem: "ledger",
			Name:      "withdrawals_total",
			Help:      "Withdrawn amount",
		}, []string{"asset"}),
		matchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spotdex",
			Subsystem: "engine",
			Name:      "submit_duration_seconds",
			Help:      "Time to admit, match and resolve one order",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"type"}),
	}
}

// Registry is what the /metrics handler gathers from.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
