package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_reconciliations_total",
			Help: "Total number of reconciliation runs by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	RetryRoundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_retry_rounds_total",
			Help: "Total number of retry rounds executed",
		},
	)

	ResubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transaction_resubmissions_total",
			Help: "Total number of transaction resubmissions by outcome",
		},
		[]string{"outcome"},
	)

	GatewayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_gateway_errors_total",
			Help: "Total number of gateway errors by kind",
		},
		[]string{"kind"},
	)

	ReconciliationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_reconciliation_duration_seconds",
			Help:    "Duration of reconciliation runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(ReconciliationsTotal)
	prometheus.MustRegister(RetryRoundsTotal)
	prometheus.MustRegister(ResubmissionsTotal)
	prometheus.MustRegister(GatewayErrorsTotal)
	prometheus.MustRegister(ReconciliationDuration)
}
