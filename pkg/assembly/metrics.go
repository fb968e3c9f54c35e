package assembly

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeworks_assembly_flushes_total",
		Help: "Propagation flushes run",
	})

	realignmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeworks_assembly_realignments_total",
		Help: "Components moved by propagation",
	})

	// flushSize tracks components reached per flush, seeds included
	flushSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeworks_assembly_flush_components",
		Help:    "Components reached per propagation flush",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})
)
