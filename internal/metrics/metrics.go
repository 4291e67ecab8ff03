// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CreditGrantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_grants_total",
			Help: "Total number of credit transactions written to the ledger",
		},
		[]string{"kind"},
	)

	CreditRevocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_revocations_total",
			Help: "Total number of credit transactions revoked from the ledger",
		},
		[]string{"kind"},
	)

	// Failed credit side-effects that exhausted retries. The primary
	// action already succeeded, these rows need manual reconciliation.
	CreditFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_failures_total",
			Help: "Credit side-effects that failed after retries",
		},
		[]string{"kind"},
	)

	CreditAmountHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credit_amount",
			Help:    "Distribution of granted credit amounts",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		},
		[]string{"kind"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
