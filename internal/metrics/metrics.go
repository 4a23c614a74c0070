package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline Metrics
var (
	// DocumentsProcessedTotal tracks processed documents by stage and outcome
	DocumentsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_processed_total",
			Help: "Documents processed by pipeline stage and status",
		},
		[]string{"stage", "status"},
	)

	// StageDurationSeconds tracks per-stage processing latency
	StageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	// ChunksScoredTotal tracks total chunks scored by the sentiment model
	ChunksScoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chunks_scored_total",
			Help: "Total chunks scored by the sentiment model",
		},
	)

	// ScorerRetriesTotal tracks retried scorer calls
	ScorerRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scorer_retries_total",
			Help: "Total retried scorer calls after transient failures",
		},
	)
)

// Market Data Metrics
var (
	// PriceLookupsTotal tracks upstream market-data lookups
	PriceLookupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "price_lookups_total",
			Help: "Total upstream market-data lookups",
		},
	)

	// PriceCacheHitsTotal tracks price lookups served from cache
	PriceCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "price_cache_hits_total",
			Help: "Price lookups served from the observation cache",
		},
	)

	// MarketDeltasTotal tracks computed deltas by horizon and availability
	MarketDeltasTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_deltas_total",
			Help: "Market deltas computed by horizon and status (ok/missing)",
		},
		[]string{"horizon", "status"},
	)
)

// Correlation Metrics
var (
	// CorrelationRunsTotal tracks correlation engine runs
	CorrelationRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "correlation_runs_total",
			Help: "Total correlation engine runs",
		},
	)

	// CorrelationGroupsTotal tracks groups produced by sufficiency
	CorrelationGroupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "correlation_groups_total",
			Help: "Correlation groups produced by sufficiency",
		},
		[]string{"sufficient"},
	)
)
