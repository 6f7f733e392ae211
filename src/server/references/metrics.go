package references

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kcl_navigator_query_duration_seconds",
		Help:    "Navigation query latency by operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	queryResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kcl_navigator_queries_total",
		Help: "Navigation queries by operation and outcome",
	}, []string{"op", "result"})

	droppedCandidates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kcl_navigator_reference_candidates_dropped_total",
		Help: "Textual matches rejected because they resolve elsewhere",
	})

	prefilterSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kcl_navigator_scan_prefilter_skips_total",
		Help: "Files skipped by the substring prefilter during fresh scans",
	})
)
