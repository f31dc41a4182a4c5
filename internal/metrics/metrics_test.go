package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDecision(t *testing.T) {
	before := testutil.ToFloat64(decisionsTotal.WithLabelValues("true", "CRAWLER"))
	ObserveDecision(true, "CRAWLER")
	ObserveDecision(true, "CRAWLER")
	after := testutil.ToFloat64(decisionsTotal.WithLabelValues("true", "CRAWLER"))
	assert.Equal(t, before+2, after)
}

func TestObserveUpstream(t *testing.T) {
	before := testutil.ToFloat64(upstreamRequests.WithLabelValues("404"))
	ObserveUpstream(404, 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(upstreamRequests.WithLabelValues("404")))
}

func TestObserveUpstreamFailure(t *testing.T) {
	before := testutil.ToFloat64(upstreamFailures)
	ObserveUpstreamFailure()
	assert.Equal(t, before+1, testutil.ToFloat64(upstreamFailures))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObservePassThrough()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "prerender_pass_through_total")
}
