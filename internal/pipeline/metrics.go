package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	// RenderLatency measures claim render passes by experiment group.
	RenderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "factstudy_render_latency_seconds",
		Help:    "Latency of one claim render pass",
		Buckets: prometheus.DefBuckets,
	}, []string{"group"})

	// RenderErrorsTotal counts failed renders by error kind.
	RenderErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factstudy_render_errors_total",
		Help: "Total number of failed claim renders",
	}, []string{"kind"})

	// AnnotationMismatchTotal counts justifications whose sentence count differs from the attribution rows.
	AnnotationMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factstudy_annotation_mismatch_total",
		Help: "Total number of justifications with a sentence/attribution row count mismatch",
	})

	// ViewCacheTotal counts rendered view cache lookups by result.
	ViewCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factstudy_view_cache_total",
		Help: "Rendered claim view cache lookups",
	}, []string{"result"})

	// CacheLookups reports the cumulative lookups of the in-memory cache by result.
	CacheLookups = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "factstudy_cache_lookups",
		Help: "Lookups served by the in-memory cache since start",
	}, []string{"result"})

	// CacheItems reports the number of unexpired items in the in-memory cache.
	CacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "factstudy_cache_items",
		Help: "Items held by the in-memory cache",
	})
)
