package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveDispatch("group", "sent")
	m.ObserveDispatch("group", "sent")
	m.ObserveDispatch("group", "suppressed")
	m.ObserveDeliveryError("transport")
	m.ObserveSend("alert", 120*time.Millisecond)
	m.SetQueueDepth(4)
	m.ObserveDropped("queue_full")
	m.ObserveRestart("ingest.http")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatch.WithLabelValues("group", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatch.WithLabelValues("group", "suppressed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveryErrors.WithLabelValues("transport")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("queue_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.restarts.WithLabelValues("ingest.http")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveDispatch("alert", "sent")
	m.SetQueueDepth(1)
	assert.Nil(t, m.Registry())

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerExposesFamilies(t *testing.T) {
	m := New()
	m.ObserveDispatch("alert", "sent")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	assert.Contains(t, string(body), `hiprelay_dispatch_total{kind="alert",outcome="sent"} 1`)
}
