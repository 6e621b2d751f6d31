package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectorIsIsolated(t *testing.T) {
	// Private registries allow several collectors in one process.
	assert.NotPanics(t, func() {
		NewCollector()
		NewCollector()
	})
}

func TestRecordJobs(t *testing.T) {
	c := NewCollector()
	c.RecordReceived()
	c.RecordReceived()
	c.RecordRejected("unknown_template")
	c.RecordReported(true)
	c.RecordReported(false)
	c.RecordReported(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.jobsReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobsRejected.WithLabelValues("unknown_template")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobsReported.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.jobsReported.WithLabelValues("failure")))
}

func TestRecordLegs(t *testing.T) {
	c := NewCollector()
	c.RecordLeg("device", true, 0.2)
	c.RecordLeg("document", false, 1.5)
	c.RecordDeviceRetry()
	c.RecordDocumentMethod("lp")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.legs.WithLabelValues("device", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.legs.WithLabelValues("document", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deviceRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.documentMethods.WithLabelValues("lp")))
}

func TestGauges(t *testing.T) {
	c := NewCollector()
	c.SetConnectionState(3)
	c.SetDeviceQueueDepth(4)
	c.SetOutboxDepth(2)
	c.RecordReconnect()
	c.RecordRegistration("timeout")

	assert.Equal(t, 3.0, testutil.ToFloat64(c.supervisorState))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.deviceQueueDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.outboxDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reconnects))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.registrations.WithLabelValues("timeout")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordReceived()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "print_agent_jobs_received_total 1")
}
