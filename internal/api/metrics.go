package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aura",
		Name:      "reports_total",
		Help:      "Report generation outcomes by result.",
	}, []string{"outcome"})

	reportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aura",
		Name:      "report_duration_seconds",
		Help:      "Wall time spent generating a report.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
