// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Total number of analyses by outcome",
		},
		[]string{"outcome"},
	)

	AnalysesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_failures_total",
			Help: "Total number of analyses that failed, by error code",
		},
		[]string{"error_code"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Duration of an analysis including retries",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	AnalysesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analysis_requests_active",
			Help: "Number of analyses in flight",
		},
	)

	UpstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_attempts_total",
			Help: "Calls made to the language model, by result",
		},
		[]string{"result"},
	)

	TranscriptTruncations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcript_truncations_total",
			Help: "Transcripts cut before being sent, by stage",
		},
		[]string{"stage"},
	)

	TranscriptChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcript_chunks",
			Help:    "Number of line-aligned segments an incoming transcript spans",
			Buckets: []float64{1, 2, 3, 4, 6, 8},
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_cache_lookups_total",
			Help: "Result cache lookups, by result",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Label values shared by the collectors above.
const (
	StagePreflight = "preflight"
	StageRetry     = "retry"

	AttemptSuccess = "success"
	AttemptError   = "error"
	AttemptTimeout = "timeout"
	AttemptAuth    = "auth"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)
