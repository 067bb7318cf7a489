package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts handled requests by classification category.
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchd",
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Total number of dispatch requests by category",
		},
		[]string{"category"},
	)

	// repliesTotal counts terminal outcomes.
	// Labels: result (ok, degraded)
	repliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchd",
			Subsystem: "dispatch",
			Name:      "replies_total",
			Help:      "Total number of replies by terminal outcome",
		},
		[]string{"result"},
	)

	// attemptDuration tracks successful upstream round-trip times.
	attemptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dispatchd",
			Subsystem: "dispatch",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of successful upstream completion calls in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		},
	)
)
