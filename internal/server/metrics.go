package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values.
const (
	StatusOK          = "200"
	StatusRedirect    = "303"
	StatusBadRequest  = "400"
	StatusNotFound    = "404"
	StatusShape       = "422"
	StatusLimited     = "429"
	StatusError       = "500"
	StatusUnsupported = "501"

	ReasonRateLimited    = "rate_limited"
	ReasonInvalidSession = "invalid_session"
	ReasonExpired        = "expired_session"
	ReasonBadGroup       = "bad_group"

	ErrorTypeRender = "render_error"
	ErrorTypeCookie = "cookie_error"
)

var (
	// HitsTotal counts total requests by route and HTTP status code.
	HitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factstudy_http_hits_total",
		Help: "Total number of study page hits",
	}, []string{"route", "status"})

	// DeniedTotal counts rejected or reset requests by reason.
	DeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factstudy_http_denied_total",
		Help: "Total number of denied or reset study requests",
	}, []string{"reason"})

	// ErrorsTotal counts errors by type.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factstudy_http_errors_total",
		Help: "Total number of study server errors",
	}, []string{"type"})

	// SessionsStarted counts participants that started a new page sequence.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factstudy_sessions_started_total",
		Help: "Total number of new participant sessions",
	})

	// TrackedClients reports how many participants and addresses the rate limiter tracks.
	TrackedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "factstudy_http_rate_limited_clients",
		Help: "Number of clients currently tracked by the rate limiter",
	})

	// LatencyHistogram measures request latency by route.
	LatencyHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "factstudy_http_latency_seconds",
		Help:    "Latency of study page requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)
