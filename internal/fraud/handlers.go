package fraud

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// maxBatchSize caps a single batch scoring request.
const maxBatchSize = 500

// Handler provides HTTP endpoints for fraud scoring operations.
type Handler struct {
	engine   *Engine
	results  ResultStore
	feedback FeedbackStore
}

// NewHandler creates a new fraud handler.
func NewHandler(engine *Engine, results ResultStore, feedback FeedbackStore) *Handler {
	return &Handler{engine: engine, results: results, feedback: feedback}
}

// RegisterRoutes sets up fraud scoring routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/fraud/score", h.ScoreTransaction)
	r.POST("/fraud/score/batch", h.ScoreBatch)
	r.POST("/fraud/feedback", h.SubmitFeedback)
	r.GET("/fraud/metrics", h.GetMetrics)
	r.GET("/fraud/results/:id", h.GetResult)
	r.GET("/fraud/merchants/:id/stats", h.GetMerchantStats)
	r.PUT("/fraud/merchants/:id/stats", h.SetMerchantStats)
}

// ScoreTransaction handles POST /api/v1/fraud/score
func (h *Handler) ScoreTransaction(c *gin.Context) {
	var tx Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	result, err := h.engine.Evaluate(c.Request.Context(), &tx)
	if err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation_failed",
				"details": verrs,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ScoreBatch handles POST /api/v1/fraud/score/batch
func (h *Handler) ScoreBatch(c *gin.Context) {
	var req struct {
		Transactions []*Transaction `json:"transactions" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	if len(req.Transactions) > maxBatchSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "batch_too_large",
			"message": "batch exceeds maximum size",
		})
		return
	}

	results, err := h.engine.EvaluateBatch(c.Request.Context(), req.Transactions)

	resp := gin.H{
		"results": results,
		"count":   len(results),
	}
	if err != nil {
		// Partial success: invalid elements are nil, the rest scored.
		resp["error"] = "validation_failed"
		resp["message"] = err.Error()
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SubmitFeedback handles POST /api/v1/fraud/feedback
func (h *Handler) SubmitFeedback(c *gin.Context) {
	var req struct {
		FraudScore  *float64   `json:"fraudScore" binding:"required"`
		ActualFraud *bool      `json:"actualFraud" binding:"required"`
		Timestamp   *time.Time `json:"timestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	if *req.FraudScore < 0 || *req.FraudScore > 1 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"message": "fraudScore must be in [0, 1]",
		})
		return
	}

	ts := time.Time{}
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	h.engine.AddFeedback(*req.FraudScore, *req.ActualFraud, ts)

	if h.feedback != nil {
		record := &FeedbackRecord{
			FraudScore:  *req.FraudScore,
			ActualFraud: *req.ActualFraud,
			Timestamp:   ts,
		}
		if record.Timestamp.IsZero() {
			record.Timestamp = time.Now()
		}
		if err := h.feedback.SaveFeedback(c.Request.Context(), record); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":         "recorded",
		"feedback_count": h.engine.calibrator.FeedbackCount(),
	})
}

// GetMetrics handles GET /api/v1/fraud/metrics
func (h *Handler) GetMetrics(c *gin.Context) {
	total, fraud := h.engine.Counters()
	medium, high := h.engine.Thresholds()

	fraudRate := 0.0
	if total > 0 {
		fraudRate = float64(fraud) / float64(total)
	}

	c.JSON(http.StatusOK, gin.H{
		"total_transactions":    total,
		"total_fraud_detected":  fraud,
		"fraud_rate":            fraudRate,
		"latency":               h.engine.Stats(),
		"medium_risk_threshold": medium,
		"high_risk_threshold":   high,
		"active_entities":       h.engine.History().EntityCount(),
	})
}

// GetResult handles GET /api/v1/fraud/results/:id
func (h *Handler) GetResult(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error":   "not_configured",
			"message": "result storage is not configured",
		})
		return
	}

	result, err := h.results.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrResultNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "no result for this transaction",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetMerchantStats handles GET /api/v1/fraud/merchants/:id/stats
func (h *Handler) GetMerchantStats(c *gin.Context) {
	stats := h.engine.History().MerchantStatistics(c.Param("id"))
	c.JSON(http.StatusOK, stats)
}

// SetMerchantStats handles PUT /api/v1/fraud/merchants/:id/stats.
// Merchant aggregates are computed offline and pushed here by the batch job.
func (h *Handler) SetMerchantStats(c *gin.Context) {
	var stats MerchantStats
	if err := c.ShouldBindJSON(&stats); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	if stats.AvgAmount < 0 || stats.TransactionCount < 0 || stats.FraudRate < 0 || stats.FraudRate > 1 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"message": "merchant stats out of range",
		})
		return
	}

	h.engine.History().SetMerchantStatistics(c.Param("id"), stats)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
