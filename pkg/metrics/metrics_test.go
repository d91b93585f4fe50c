package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Handler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ObserveHTTP("GET", "/api/documents", 200, 15*time.Millisecond)
	m.ObserveHTTP("GET", "", 404, time.Millisecond)
	m.RateLimited("/api/search")
	m.JobProcessed("document_process", "ok", 2*time.Second)
	m.AIRequest("summarize", errors.New("boom"))
	m.WebhookEvent("checkout.session.completed")
	m.RealtimeConnected(1)
	m.DocumentUploaded(1 << 20)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, body, `docuflow_http_requests_total{method="GET",route="/api/documents",status="200"} 1`)
	assert.Contains(t, body, `route="unmatched"`)
	assert.Contains(t, body, `docuflow_ai_requests_total{operation="summarize",result="error"} 1`)
	assert.Contains(t, body, `docuflow_realtime_connections 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
		m.JobProcessed("x", "ok", time.Second)
		m.RealtimeConnected(-1)
	})
}
