package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kcl_navigator_resolve_duration_seconds",
		Help:    "Time to build a resolved program from a file set",
		Buckets: prometheus.DefBuckets,
	})

	resolvedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kcl_navigator_resolve_files_total",
		Help: "Files handed to the resolver by outcome",
	}, []string{"result"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kcl_navigator_resolver_cache_lookups_total",
		Help: "Parse cache lookups by result",
	}, []string{"result"})
)
