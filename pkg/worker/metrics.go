package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// jobsTotal counts task outcomes as observed by Accept and Submit.
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeworks_worker_jobs_total",
		Help: "Background geometry jobs by outcome",
	}, []string{"outcome"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeworks_worker_job_duration_seconds",
		Help:    "Background geometry job duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})
)
