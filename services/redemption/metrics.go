package redemption

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	redeemOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redemption_attempts_total",
		Help: "Redemption attempts by outcome kind and channel.",
	}, []string{"kind", "channel"})

	redeemDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redemption_duration_seconds",
		Help:    "Time spent validating and redeeming a code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "channel"})

	stampFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redemption_stamp_failures_total",
		Help: "Loyalty stamps that failed after a successful redemption.",
	})

	codesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redemption_codes_issued_total",
		Help: "Redemption codes issued to clients.",
	})
)
