package endpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// outcomesTotal counts recorded dispatch and probe outcomes.
	// Labels: result (success, failure)
	outcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchd",
			Subsystem: "endpoint",
			Name:      "outcomes_total",
			Help:      "Total number of recorded endpoint outcomes",
		},
		[]string{"result"},
	)

	// availableGauge indicates per-endpoint availability (1=available).
	availableGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dispatchd",
			Subsystem: "endpoint",
			Name:      "available",
			Help:      "Current endpoint availability (1=available, 0=unavailable)",
		},
		[]string{"url"},
	)

	// selectionsTotal counts how often each endpoint was selected.
	selectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchd",
			Subsystem: "endpoint",
			Name:      "selections_total",
			Help:      "Total number of times each endpoint was selected for dispatch",
		},
		[]string{"url"},
	)

	// readmissionsTotal counts probation re-admissions, including the
	// forced reset when every endpoint is down.
	readmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispatchd",
			Subsystem: "endpoint",
			Name:      "readmissions_total",
			Help:      "Total number of endpoint re-admissions after cooldown",
		},
	)

	// probeDuration tracks health probe round-trip times.
	probeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dispatchd",
			Subsystem: "endpoint",
			Name:      "probe_duration_seconds",
			Help:      "Duration of health probes in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
