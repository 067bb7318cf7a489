package materials

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatchd",
		Subsystem: "materials",
		Name:      "ingests_total",
		Help:      "Total materials ingested.",
	})

	chunksIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatchd",
		Subsystem: "materials",
		Name:      "chunks_ingested_total",
		Help:      "Total chunks embedded and stored.",
	})

	searchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatchd",
		Subsystem: "materials",
		Name:      "searches_total",
		Help:      "Total semantic searches executed.",
	})
)
