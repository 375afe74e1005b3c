package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JoinAttempts records public join attempts by outcome
	// (accepted|already_member|invalid|unauthorized|frozen|rate_limited|storage_error).
	// Frozen and rate-limited rejections are counted here so abuse against a
	// closed or throttled project remains visible.
	JoinAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitgate_join_attempts_total",
			Help: "Total number of public join attempts",
		},
		[]string{"outcome"},
	)

	// ReferralCredits counts priority-score credits granted to referrers.
	ReferralCredits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitgate_referral_credits_total",
			Help: "Total number of referral credits applied",
		},
	)

	// RateLimitRejections counts requests denied by the per-credential limiter.
	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitgate_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waitgate_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
