package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for RecordsClassified.
const (
	OutcomePositive = "positive"
	OutcomeNegative = "negative"
	OutcomeFailed   = "failed"
)

var (
	// RecordsClassified tracks finished records by outcome
	RecordsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papersift_records_classified_total",
			Help: "Total number of records classified",
		},
		[]string{"outcome"},
	)

	// APICallsTotal tracks external calls per credential suffix
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papersift_api_calls_total",
			Help: "Total number of classification API calls",
		},
		[]string{"credential"},
	)

	// APIErrorsTotal tracks failed external calls per credential suffix
	APIErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papersift_api_errors_total",
			Help: "Total number of failed classification API calls",
		},
		[]string{"credential"},
	)

	// APILatency tracks external call latency
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "papersift_api_latency_seconds",
			Help:    "Classification API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"credential"},
	)

	// RateLimitWait tracks time spent waiting on a credential's limiter
	RateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "papersift_ratelimit_wait_seconds",
			Help:    "Time spent waiting for the per-credential rate limiter",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"credential"},
	)

	// RetriesTotal counts retried classification attempts
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "papersift_retries_total",
			Help: "Total number of classification retries",
		},
	)

	// CheckpointRows counts rows appended to the checkpoint
	CheckpointRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "papersift_checkpoint_rows_total",
			Help: "Total number of rows appended to the checkpoint file",
		},
	)

	// MirrorErrors counts non-fatal sink failures
	MirrorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papersift_mirror_errors_total",
			Help: "Total number of result mirror failures",
		},
		[]string{"sink"},
	)

	// PendingRecords is the number of records left to classify in the current run
	PendingRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "papersift_pending_records",
			Help: "Records remaining in the current run",
		},
	)

	// DBConnectionPoolUsage is the percentage of open connections in the mirror pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "papersift_db_connection_pool_usage_percent",
			Help: "Result mirror connection pool usage percentage",
		},
	)
)
