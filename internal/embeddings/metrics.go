package embeddings

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	embedDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dispatchd",
		Subsystem: "embeddings",
		Name:      "request_duration_seconds",
		Help:      "Duration of embedding requests.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"model", "operation"})

	embedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatchd",
		Subsystem: "embeddings",
		Name:      "errors_total",
		Help:      "Total embedding request failures.",
	}, []string{"model", "operation"})
)

func observeEmbed(model, operation string, elapsed time.Duration, err error) {
	embedDuration.WithLabelValues(model, operation).Observe(elapsed.Seconds())
	if err != nil {
		embedErrors.WithLabelValues(model, operation).Inc()
	}
}
