package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	PostsClaimed       = prometheus.NewCounter(prometheus.CounterOpts{Name: "publisher_posts_claimed_total", Help: "Due posts claimed by the scheduler"})
	PublishSuccess     = prometheus.NewCounter(prometheus.CounterOpts{Name: "publisher_platform_published_total", Help: "Platform publishes that succeeded"})
	PublishRetryable   = prometheus.NewCounter(prometheus.CounterOpts{Name: "publisher_platform_retryable_total", Help: "Platform publishes that failed retryably"})
	PublishTerminal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "publisher_platform_terminal_total", Help: "Platform publishes that failed terminally"})
	RetriesScheduled   = prometheus.NewCounter(prometheus.CounterOpts{Name: "publisher_retries_scheduled_total", Help: "Retry jobs enqueued"})
	RetriesExhausted   = prometheus.NewCounter(prometheus.CounterOpts{Name: "publisher_retries_exhausted_total", Help: "Platform posts that ran out of attempts"})
	RateLimitDeferrals = prometheus.NewCounter(prometheus.CounterOpts{Name: "publisher_rate_limit_deferrals_total", Help: "Publishes deferred by the platform rate limiter"})
	StaleReclaimed     = prometheus.NewCounter(prometheus.CounterOpts{Name: "publisher_stale_claims_reclaimed_total", Help: "Abandoned claims recovered by reclamation"})
	RetryQueueDepth    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "publisher_retry_queue_depth", Help: "Live retry jobs"})
	InFlightPublishes  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "publisher_inflight_publishes", Help: "Platform publishes currently in flight"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			PostsClaimed,
			PublishSuccess,
			PublishRetryable,
			PublishTerminal,
			RetriesScheduled,
			RetriesExhausted,
			RateLimitDeferrals,
			StaleReclaimed,
			RetryQueueDepth,
			InFlightPublishes,
		)
	})
	return promhttp.Handler()
}
