package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relayAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwardbot_relay_attempts_total",
			Help: "Relay attempts by result (ok, rate_limited, timeout, transient, permanent, unclassified).",
		},
		[]string{"result"},
	)

	destinationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwardbot_destinations_total",
			Help: "Per-destination terminal outcomes by result (ok, failed).",
		},
		[]string{"result"},
	)

	batchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forwardbot_batches_total",
			Help: "Number of dispatched batches.",
		},
	)

	runsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forwardbot_runs_total",
			Help: "Number of processed inbound events.",
		},
	)

	runDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forwardbot_run_duration_seconds",
			Help:    "Wall-clock duration of a full fan-out run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	rateLimitWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forwardbot_rate_limit_wait_seconds",
			Help:    "Mandatory waits imposed by delivery rate limits.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	postsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forwardbot_posts_skipped_total",
			Help: "Inbound posts ignored because they did not originate from the master channel.",
		},
	)
)

func RecordAttempt(result string) { relayAttemptsTotal.WithLabelValues(result).Inc() }

func RecordDestination(ok bool) {
	if ok {
		destinationsTotal.WithLabelValues("ok").Inc()
	} else {
		destinationsTotal.WithLabelValues("failed").Inc()
	}
}

func RecordBatch() { batchesTotal.Inc() }

func RecordRun(d time.Duration) {
	runsTotal.Inc()
	runDurationSeconds.Observe(d.Seconds())
}

func RecordRateLimitWait(d time.Duration) { rateLimitWaitSeconds.Observe(d.Seconds()) }

func RecordSkippedPost() { postsSkippedTotal.Inc() }
