package wordmap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	indexOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kcl_navigator_wordmap_operations_total",
		Help: "Word map mutations by operation",
	}, []string{"op"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kcl_navigator_wordmap_build_duration_seconds",
		Help:    "Full word map build duration",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	indexedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kcl_navigator_wordmap_files",
		Help: "Files currently held by the most recently updated word map",
	})

	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kcl_navigator_wordmap_lookups_total",
		Help: "Word map lookups by result",
	}, []string{"result"})
)
