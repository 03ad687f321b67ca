package collector

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurawell/pulse/config/adaptive"
	"github.com/aurawell/pulse/monitoring"
)

func testReport(sessionID string) monitoring.Report {
	return monitoring.Report{
		SessionID:   sessionID,
		GeneratedAt: time.Now().UTC(),
		Device:      monitoring.DeviceInfo{Tier: "medium", OS: "linux"},
		Metrics: []monitoring.ComponentMetric{
			{
				Name:              "Widget",
				RenderCount:       10,
				TotalRenderTime:   95 * time.Millisecond,
				AverageRenderTime: 9500 * time.Microsecond,
				LastRenderTime:    50 * time.Millisecond,
				SlowRenderCount:   1,
			},
		},
	}
}

func postReport(t *testing.T, url string, report monitoring.Report) *http.Response {
	t.Helper()

	body, err := json.Marshal(report)
	require.NoError(t, err)

	resp, err := http.Post(url+"/v1/reports", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestServerAcceptsReport(t *testing.T) {
	s := NewServer(nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp := postReport(t, ts.URL, testReport("session-1"))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	state, ok := s.Session("session-1")
	require.True(t, ok)
	assert.Equal(t, int64(1), state.Reports)
	require.Len(t, state.Components, 1)
	assert.Equal(t, int64(10), state.Components[0].RenderCount)
	assert.Equal(t, 1, s.SessionCount())
}

func TestServerToleratesDuplicateDelivery(t *testing.T) {
	s := NewServer(nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	report := testReport("session-1")
	for i := 0; i < 3; i++ {
		resp := postReport(t, ts.URL, report)
		resp.Body.Close()
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	// replays bump the report counter but the cumulative values stay put
	state, ok := s.Session("session-1")
	require.True(t, ok)
	assert.Equal(t, int64(3), state.Reports)
	assert.Equal(t, int64(10), state.Components[0].RenderCount)

	metrics := scrapeMetrics(t, ts.URL)
	assert.Contains(t, metrics, `pulse_collector_component_render_count{component="Widget",session="session-1"} 10`)
}

func TestServerRejectsMissingSessionID(t *testing.T) {
	s := NewServer(nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp := postReport(t, ts.URL, monitoring.Report{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Zero(t, s.SessionCount())
}

func TestServerRejectsMalformedJSON(t *testing.T) {
	s := NewServer(nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/reports", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerDevModeValidation(t *testing.T) {
	cfg := adaptive.DefaultConfig()
	cfg.Development = true

	s := NewServer(cfg)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	// structurally broken payload: metrics is not an array
	resp, err := http.Post(ts.URL+"/v1/reports", "application/json",
		strings.NewReader(`{"session_id":"s1","metrics":"oops"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	good := postReport(t, ts.URL, testReport("s1"))
	good.Body.Close()
	assert.Equal(t, http.StatusAccepted, good.StatusCode)
}

func TestServerSessionsEndpoint(t *testing.T) {
	s := NewServer(nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	postReport(t, ts.URL, testReport("a")).Body.Close()
	postReport(t, ts.URL, testReport("b")).Body.Close()

	resp, err := http.Get(ts.URL + "/v1/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sessions []SessionState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	assert.Len(t, sessions, 2)
}

func TestServerHealthz(t *testing.T) {
	s := NewServer(nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"status":"ok"`)
}

func scrapeMetrics(t *testing.T, url string) string {
	t.Helper()

	resp, err := http.Get(url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
