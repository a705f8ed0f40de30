package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airdrop_indexer_build_info",
			Help: "Build information of the airdrop indexer",
		},
		[]string{"version", "commit", "date"},
	)

	ViewRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_indexer_view_refresh_total",
			Help: "Total number of view refreshes",
		},
		[]string{"view_type", "status"},
	)

	ViewRefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airdrop_indexer_view_refresh_duration_seconds",
			Help:    "Duration of view refreshes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~41s
		},
		[]string{"view_type"},
	)

	ClaimUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_indexer_claim_updates_total",
			Help: "Total number of claim status updates by source and result",
		},
		[]string{"source", "result"},
	)

	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_indexer_decode_errors_total",
			Help: "Total number of accounts that failed to decode",
		},
		[]string{"account_type"},
	)

	FeedStateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_indexer_feed_state_transitions_total",
			Help: "Total number of subscription feed state transitions",
		},
		[]string{"state"},
	)

	FeedFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airdrop_indexer_feed_failures_total",
			Help: "Total number of feeds that gave up after too many reconnection attempts",
		},
	)

	BootstrapAccountsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_indexer_bootstrap_accounts_total",
			Help: "Total number of claim status accounts loaded by bulk scans",
		},
		[]string{"status"},
	)

	CacheClaimStatuses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airdrop_indexer_cache_claim_statuses",
			Help: "Number of claim statuses held in the cache",
		},
	)

	CacheDistributors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airdrop_indexer_cache_distributors",
			Help: "Number of distributors held in the cache",
		},
	)

	UpdateQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airdrop_indexer_update_queue_depth",
			Help: "Number of updates waiting to be applied",
		},
	)
)
