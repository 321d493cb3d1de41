package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudguard/internal/config"
	"github.com/mbd888/fraudguard/internal/fraud"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                "8080",
		Env:                 "development",
		LogLevel:            "error",
		MediumRiskThreshold: 0.5,
		HighRiskThreshold:   0.9,
		TargetPrecision:     0.95,
		TargetRecall:        0.90,
		MinFeedbackSamples:  100,
		CalibrationInterval: 5 * time.Minute,
		WindowCapacity:      100,
		LatencyBufferSize:   1000,
		ScorerTimeout:       50 * time.Millisecond,
		RateLimitRPM:        6000,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		if srv.rateLimiter != nil {
			srv.rateLimiter.Stop()
		}
	})
	return srv
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Checks)

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Readiness flips only once Run has started
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestScoreEndToEnd(t *testing.T) {
	srv := newTestServer(t)

	body := `{
		"transactionId": "txn_e2e_1",
		"userId": "user_e2e",
		"merchantId": "merchant_e2e",
		"amount": 25.00,
		"currency": "USD",
		"timestamp": "2025-03-12T14:30:00Z",
		"transactionType": "purchase",
		"channel": "pos",
		"accountAgeDays": 900
	}`
	req := httptest.NewRequest("POST", "/api/v1/fraud/score", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result fraud.FraudResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "txn_e2e_1", result.TransactionID)
	assert.Equal(t, "baseline-v1", result.ModelVersion)
	assert.Contains(t, []fraud.Decision{
		fraud.DecisionApprove, fraud.DecisionReview, fraud.DecisionDecline,
	}, result.Decision)

	// X-Request-ID assigned by middleware
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/health/live", nil)
	req.Header.Set("X-Request-ID", "req_upstream_1")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, "req_upstream_1", w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpointExposed(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fraudguard_")
}

func TestUnknownRouteIs404(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
