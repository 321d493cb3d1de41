package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/fraudguard/internal/circuitbreaker"
	"github.com/mbd888/fraudguard/internal/traces"
)

// Default engine thresholds and limits.
const (
	DefaultMediumRiskThreshold = 0.5
	DefaultHighRiskThreshold   = 0.9
	DefaultScorerTimeout       = 50 * time.Millisecond

	maxRiskFactors = 5

	// failSafeScore is returned whenever the engine cannot reliably score a
	// transaction. Business invariant: degraded evaluations land in manual
	// review, never silent approval.
	failSafeScore = 0.5
)

// Notifier receives completed evaluations for real-time streaming. Must not
// block the evaluation path.
type Notifier interface {
	NotifyDecision(tx *Transaction, result *FraudResult)
}

// EngineConfig carries the tunables for a decision engine.
type EngineConfig struct {
	MediumRiskThreshold float64
	HighRiskThreshold   float64
	TargetPrecision     float64
	TargetRecall        float64
	WindowCapacity      int
	LatencyBufferSize   int
	MinFeedbackSamples  int
	ScorerTimeout       time.Duration
}

// DefaultEngineConfig returns the baseline tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MediumRiskThreshold: DefaultMediumRiskThreshold,
		HighRiskThreshold:   DefaultHighRiskThreshold,
		TargetPrecision:     0.95,
		TargetRecall:        0.90,
		WindowCapacity:      DefaultWindowCapacity,
		LatencyBufferSize:   DefaultLatencyBufferSize,
		MinFeedbackSamples:  DefaultMinFeedbackSamples,
		ScorerTimeout:       DefaultScorerTimeout,
	}
}

// Engine orchestrates feature extraction, scoring, and the decision state
// machine. All shared state (history windows, thresholds, latency buffer) is
// internally synchronized; Evaluate is safe to call from many goroutines.
type Engine struct {
	cfg        EngineConfig
	scorer     Scorer
	history    *HistoryStore
	calibrator *Calibrator
	latency    *LatencyRecorder
	breaker    *circuitbreaker.Breaker
	results    ResultStore
	notifier   Notifier
	logger     *slog.Logger
}

// EngineOption configures an engine.
type EngineOption func(*Engine)

// WithResultStore sets the persistence collaborator for evaluation results.
func WithResultStore(store ResultStore) EngineOption {
	return func(e *Engine) { e.results = store }
}

// WithNotifier sets the real-time decision stream sink.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithBreaker overrides the scorer circuit breaker (for tests).
func WithBreaker(b *circuitbreaker.Breaker) EngineOption {
	return func(e *Engine) { e.breaker = b }
}

// NewEngine creates a decision engine around the injected scorer.
func NewEngine(cfg EngineConfig, scorer Scorer, opts ...EngineOption) *Engine {
	if cfg.ScorerTimeout <= 0 {
		cfg.ScorerTimeout = DefaultScorerTimeout
	}
	e := &Engine{
		cfg:     cfg,
		scorer:  scorer,
		history: NewHistoryStore(cfg.WindowCapacity),
		calibrator: NewCalibrator(
			cfg.MediumRiskThreshold, cfg.TargetPrecision, cfg.TargetRecall, cfg.MinFeedbackSamples),
		latency: NewLatencyRecorder(cfg.LatencyBufferSize),
		breaker: circuitbreaker.New(5, 10*time.Second),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	mediumThresholdGauge.Set(cfg.MediumRiskThreshold)
	return e
}

// History exposes the rolling entity store (merchant aggregate feed, eviction
// sweeps, handler reads).
func (e *Engine) History() *HistoryStore { return e.history }

// Thresholds returns the current (medium, high) decision thresholds. The
// medium threshold is adaptive; high is fixed configuration.
func (e *Engine) Thresholds() (medium, high float64) {
	return e.calibrator.Threshold(), e.cfg.HighRiskThreshold
}

// Evaluate scores a single transaction and returns its decision.
//
// Malformed transactions are the only hard failure: they return
// ValidationErrors with no state mutated. Every other failure class (scorer
// error, timeout, open breaker) degrades to the fail-safe review result.
func (e *Engine) Evaluate(ctx context.Context, tx *Transaction) (*FraudResult, error) {
	if errs := ValidateTransaction(tx); len(errs) > 0 {
		evalValidationFailures.Inc()
		return nil, errs
	}

	ctx, span := traces.StartSpan(ctx, "fraud.Evaluate",
		traces.TransactionID(tx.ID),
		traces.Channel(string(tx.Channel)),
	)
	defer span.End()

	start := time.Now()

	// Snapshot once at call start so a transaction never observes its own
	// not-yet-recorded history mid-call.
	history := e.history.Snapshot(tx.UserID)
	merchant := e.history.MerchantStatistics(tx.MerchantID)
	features := ExtractFeatures(tx, history, merchant)

	score, cause, err := e.score(ctx, features)

	var result *FraudResult
	if err != nil {
		e.logger.Error("scoring failed, returning fail-safe decision",
			"transaction_id", tx.ID, "cause", cause, "error", err)
		evalScorerFailures.WithLabelValues(cause).Inc()
		result = e.failSafeResult(tx, start)
	} else {
		result = e.decide(ctx, tx, features, score, start)
	}

	// The engine-internal write of entity history happens after the decision
	// regardless of outcome, so degraded scoring still accumulates behavior.
	e.history.Record(tx.UserID, tx.Amount, tx.Timestamp, tx.MerchantID)

	e.latency.Record(result.ProcessingTimeMs, result.IsFraud)
	evalDecisions.WithLabelValues(string(result.Decision)).Inc()
	evalDuration.Observe(time.Since(start).Seconds())
	evalScoreDistribution.Observe(result.FraudScore)
	activeEntities.Set(float64(e.history.EntityCount()))

	span.SetAttributes(traces.Decision(string(result.Decision)))

	e.publish(tx, result)

	return result, nil
}

// EvaluateBatch applies Evaluate to each transaction in order. Per-element
// semantics are unchanged: invalid elements yield a nil result and the first
// validation error is returned after the whole batch completes.
func (e *Engine) EvaluateBatch(ctx context.Context, txs []*Transaction) ([]*FraudResult, error) {
	results := make([]*FraudResult, len(txs))
	var firstErr error
	for i, tx := range txs {
		res, err := e.Evaluate(ctx, tx)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("transaction %d (%s): %w", i, tx.ID, err)
		}
		results[i] = res
	}
	return results, firstErr
}

// AddFeedback records a labeled outcome for threshold calibration and hands a
// copy to the feedback store if one is attached to the server.
func (e *Engine) AddFeedback(score float64, actualFraud bool, ts time.Time) {
	e.calibrator.AddFeedback(score, actualFraud, ts)
	feedbackRecords.Set(float64(e.calibrator.FeedbackCount()))
}

// Calibrate re-optimizes the medium threshold from accumulated feedback and
// returns the active value. In-flight evaluations pick up the new threshold
// on their next read; no evaluation blocks on calibration.
func (e *Engine) Calibrate() float64 {
	threshold := e.calibrator.Optimize()
	mediumThresholdGauge.Set(threshold)
	return threshold
}

// Stats returns the latency summary over the current sample buffer.
func (e *Engine) Stats() LatencyStats { return e.latency.Stats() }

// Counters returns lifetime totals: transactions evaluated and flagged fraud.
func (e *Engine) Counters() (total, fraud uint64) { return e.latency.Counters() }

// score invokes the external scorer under the breaker and the configured
// timeout. Returns the probability, or a non-empty cause label with the error.
func (e *Engine) score(ctx context.Context, features FeatureVector) (float64, string, error) {
	if !e.breaker.Allow() {
		return 0, "breaker_open", fmt.Errorf("scorer circuit open")
	}

	scoreCtx, cancel := context.WithTimeout(ctx, e.cfg.ScorerTimeout)
	defer cancel()

	score, err := e.scorer.Score(scoreCtx, features)
	if err != nil {
		e.breaker.RecordFailure()
		cause := "score"
		if scoreCtx.Err() != nil {
			cause = "timeout"
		}
		return 0, cause, err
	}
	e.breaker.RecordSuccess()

	// Clamp to [0, 1]
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, "", nil
}

// decide maps a fraud score onto the decision state machine and assembles the
// result. Ordering invariant: medium <= high, so the branches are exhaustive
// and mutually exclusive.
func (e *Engine) decide(ctx context.Context, tx *Transaction, features FeatureVector, score float64, start time.Time) *FraudResult {
	medium, high := e.Thresholds()

	var risk RiskLevel
	var decision Decision
	switch {
	case score >= high:
		risk, decision = RiskHigh, DecisionDecline
	case score >= medium:
		risk, decision = RiskMedium, DecisionReview
	default:
		risk, decision = RiskLow, DecisionApprove
	}

	// Explanation is best-effort; a scorer without one degrades gracefully.
	factors, err := e.scorer.Explain(ctx, features)
	if err != nil {
		e.logger.Warn("scorer explanation unavailable", "transaction_id", tx.ID, "error", err)
		factors = nil
	}
	if len(factors) > maxRiskFactors {
		factors = factors[:maxRiskFactors]
	}

	return &FraudResult{
		TransactionID:    tx.ID,
		FraudScore:       score,
		IsFraud:          score >= medium,
		RiskLevel:        risk,
		Decision:         decision,
		TopRiskFactors:   factors,
		ModelVersion:     e.scorer.Version(),
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:        time.Now(),
	}
}

// failSafeResult is the conservative outcome for any unscorable transaction.
func (e *Engine) failSafeResult(tx *Transaction, start time.Time) *FraudResult {
	return &FraudResult{
		TransactionID:    tx.ID,
		FraudScore:       failSafeScore,
		IsFraud:          true,
		RiskLevel:        RiskMedium,
		Decision:         DecisionReview,
		ModelVersion:     e.scorer.Version(),
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:        time.Now(),
	}
}

// publish hands the result to the persistence and streaming collaborators.
// Both are best-effort and off the hot path.
func (e *Engine) publish(tx *Transaction, result *FraudResult) {
	if e.results != nil {
		txCopy := *tx
		resCopy := *result
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.results.SaveResult(ctx, &txCopy, &resCopy); err != nil {
				e.logger.Error("failed to persist fraud result",
					"transaction_id", txCopy.ID, "error", err)
			}
		}()
	}
	if e.notifier != nil {
		e.notifier.NotifyDecision(tx, result)
	}
}
