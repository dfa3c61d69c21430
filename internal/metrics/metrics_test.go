package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getMetricsBody(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_New(t *testing.T) {
	m := New()
	assert.NotNil(t, m.APIRequestsTotal)
	assert.NotNil(t, m.APIRequestDuration)
	assert.NotNil(t, m.SubmissionsTotal)
	assert.NotNil(t, m.GateDecisionsTotal)
	assert.NotNil(t, m.LookupsTotal)
	assert.NotNil(t, m.RewardsTotal)
	assert.NotNil(t, m.PendingIngests)
}

func TestMetrics_RecordAPICall(t *testing.T) {
	m := New()
	m.RecordAPICall("backend", "create-issue", "200", 0.05)
	m.RecordAPICall("backend", "create-issue", "200", 0.07)
	m.RecordAPICall("github", "merge", "error", 0.1)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `pullquest_api_requests_total{endpoint="create-issue",service="backend",status="200"} 2`)
	assert.Contains(t, body, `pullquest_api_requests_total{endpoint="merge",service="github",status="error"} 1`)
	assert.Contains(t, body, `pullquest_api_request_duration_seconds_count{endpoint="create-issue",service="backend"} 2`)
}

func TestMetrics_Outcomes(t *testing.T) {
	m := New()
	m.RecordSubmission("ingest_failed")
	m.RecordGateDecision("denied")
	m.RecordLookup("found")
	m.RecordReward("Pro")
	m.SetPendingIngests(3)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `pullquest_issue_submissions_total{outcome="ingest_failed"} 1`)
	assert.Contains(t, body, `pullquest_gate_decisions_total{result="denied"} 1`)
	assert.Contains(t, body, `pullquest_related_issue_lookups_total{result="found"} 1`)
	assert.Contains(t, body, `pullquest_rewards_total{level="Pro"} 1`)
	assert.Contains(t, body, `pullquest_pending_ingests 3`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAPICall("backend", "x", "200", 1)
		m.RecordSubmission("ok")
		m.RecordGateDecision("admitted")
		m.RecordLookup("none")
		m.RecordReward("Elite")
		m.SetPendingIngests(1)
	})
}
