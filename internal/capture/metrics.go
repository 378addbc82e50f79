package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_payments_total",
			Help: "Total number of payments captured",
		},
		[]string{"method"},
	)

	idempotencyOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_idempotency_outcomes_total",
			Help: "Idempotency check outcomes",
		},
		[]string{"outcome"},
	)

	captureDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capture_duration_seconds",
			Help:    "End to end capture processing duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	grossAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capture_gross_amount_total",
			Help: "Sum of gross amounts captured, in currency units",
		},
	)
)
