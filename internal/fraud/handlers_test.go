package fraud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, sc Scorer) (*gin.Engine, *Engine, *MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore()
	engine := NewEngine(DefaultEngineConfig(), sc, WithResultStore(store))
	h := NewHandler(engine, store, store)

	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	return router, engine, store
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestScoreTransactionEndpoint(t *testing.T) {
	router, _, _ := setupRouter(t, &stubScorer{score: 0.95})

	w := doJSON(router, "POST", "/api/v1/fraud/score", testTx("txn_h1", "user_h1", 250))
	require.Equal(t, http.StatusOK, w.Code)

	var result FraudResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "txn_h1", result.TransactionID)
	assert.Equal(t, DecisionDecline, result.Decision)
	assert.Equal(t, RiskHigh, result.RiskLevel)
	assert.True(t, result.IsFraud)
}

func TestScoreTransactionValidation(t *testing.T) {
	router, _, _ := setupRouter(t, &stubScorer{score: 0.1})

	tx := testTx("", "user_h2", -10)
	w := doJSON(router, "POST", "/api/v1/fraud/score", tx)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Error   string            `json:"error"`
		Details []ValidationError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_failed", resp.Error)
	assert.NotEmpty(t, resp.Details)
}

func TestScoreTransactionMalformedJSON(t *testing.T) {
	router, _, _ := setupRouter(t, &stubScorer{score: 0.1})

	req := httptest.NewRequest("POST", "/api/v1/fraud/score", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScoreBatchEndpoint(t *testing.T) {
	router, _, _ := setupRouter(t, &stubScorer{score: 0.2})

	body := gin.H{"transactions": []*Transaction{
		testTx("txn_hb0", "user_hb", 10),
		testTx("txn_hb1", "user_hb", 20),
	}}
	w := doJSON(router, "POST", "/api/v1/fraud/score/batch", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []*FraudResult `json:"results"`
		Count   int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "txn_hb0", resp.Results[0].TransactionID)
	assert.Equal(t, "txn_hb1", resp.Results[1].TransactionID)
}

func TestScoreBatchPartialFailure(t *testing.T) {
	router, _, _ := setupRouter(t, &stubScorer{score: 0.2})

	body := gin.H{"transactions": []*Transaction{
		testTx("txn_hp0", "user_hp", 10),
		testTx("", "user_hp", 20),
	}}
	w := doJSON(router, "POST", "/api/v1/fraud/score/batch", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Results []*FraudResult `json:"results"`
		Error   string         `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_failed", resp.Error)
	require.Len(t, resp.Results, 2)
	assert.NotNil(t, resp.Results[0])
	assert.Nil(t, resp.Results[1])
}

func TestScoreBatchTooLarge(t *testing.T) {
	router, _, _ := setupRouter(t, &stubScorer{score: 0.2})

	txs := make([]*Transaction, maxBatchSize+1)
	for i := range txs {
		txs[i] = testTx(fmt.Sprintf("txn_big_%d", i), "user_big", 10)
	}
	w := doJSON(router, "POST", "/api/v1/fraud/score/batch", gin.H{"transactions": txs})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSubmitFeedbackEndpoint(t *testing.T) {
	router, engine, store := setupRouter(t, &stubScorer{score: 0.2})

	w := doJSON(router, "POST", "/api/v1/fraud/feedback", gin.H{
		"fraudScore":  0.8,
		"actualFraud": true,
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	assert.Equal(t, 1, store.FeedbackCount())
	assert.Equal(t, 1, engine.calibrator.FeedbackCount())
}

func TestSubmitFeedbackOutOfRange(t *testing.T) {
	router, _, _ := setupRouter(t, &stubScorer{score: 0.2})

	w := doJSON(router, "POST", "/api/v1/fraud/feedback", gin.H{
		"fraudScore":  1.5,
		"actualFraud": false,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetMetricsEndpoint(t *testing.T) {
	router, engine, _ := setupRouter(t, &stubScorer{score: 0.95})

	for i := 0; i < 3; i++ {
		_, err := engine.Evaluate(context.Background(), testTx(fmt.Sprintf("txn_gm%d", i), "user_gm", 50))
		require.NoError(t, err)
	}

	w := doJSON(router, "GET", "/api/v1/fraud/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 3, resp["total_transactions"])
	assert.EqualValues(t, 3, resp["total_fraud_detected"])
	assert.EqualValues(t, 1, resp["fraud_rate"])
	assert.Contains(t, resp, "latency")
	assert.Contains(t, resp, "medium_risk_threshold")
}

func TestGetResultEndpoint(t *testing.T) {
	router, _, store := setupRouter(t, &stubScorer{score: 0.2})

	result := &FraudResult{
		TransactionID: "txn_gr1",
		FraudScore:    0.4,
		RiskLevel:     RiskLow,
		Decision:      DecisionApprove,
		Timestamp:     time.Now(),
	}
	require.NoError(t, store.SaveResult(context.Background(), testTx("txn_gr1", "user_gr", 10), result))

	w := doJSON(router, "GET", "/api/v1/fraud/results/txn_gr1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got FraudResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, DecisionApprove, got.Decision)

	w = doJSON(router, "GET", "/api/v1/fraud/results/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMerchantStatsEndpoints(t *testing.T) {
	router, engine, _ := setupRouter(t, &stubScorer{score: 0.2})

	w := doJSON(router, "PUT", "/api/v1/fraud/merchants/m42/stats", MerchantStats{
		AvgAmount:        75.5,
		TransactionCount: 12000,
		FraudRate:        0.02,
	})
	require.Equal(t, http.StatusOK, w.Code)

	stats := engine.History().MerchantStatistics("m42")
	assert.Equal(t, 75.5, stats.AvgAmount)

	w = doJSON(router, "GET", "/api/v1/fraud/merchants/m42/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got MerchantStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 0.02, got.FraudRate)
}

func TestMerchantStatsValidation(t *testing.T) {
	router, _, _ := setupRouter(t, &stubScorer{score: 0.2})

	w := doJSON(router, "PUT", "/api/v1/fraud/merchants/m1/stats", MerchantStats{FraudRate: 1.5})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
