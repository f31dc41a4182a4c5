package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prerender_decisions_total",
			Help: "Total number of classified requests by verdict and deciding rule",
		},
		[]string{"prerender", "reason"},
	)

	upstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prerender_upstream_requests_total",
			Help: "Total number of rendering service responses by status code",
		},
		[]string{"response_code"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prerender_upstream_request_duration_seconds",
			Help:    "Duration of rendering service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"response_code"},
	)

	upstreamFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prerender_upstream_failures_total",
		Help: "Rendering service calls that produced no response",
	})

	passThroughTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prerender_pass_through_total",
		Help: "Requests handed to the next handler without a pre-rendered page",
	})
)

func ObserveDecision(prerender bool, reason string) {
	decisionsTotal.WithLabelValues(strconv.FormatBool(prerender), reason).Inc()
}

func ObserveUpstream(statusCode int, d time.Duration) {
	code := strconv.Itoa(statusCode)
	upstreamRequests.WithLabelValues(code).Inc()
	upstreamDuration.WithLabelValues(code).Observe(d.Seconds())
}

func ObserveUpstreamFailure() {
	upstreamFailures.Inc()
}

func ObservePassThrough() {
	passThroughTotal.Inc()
}

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
