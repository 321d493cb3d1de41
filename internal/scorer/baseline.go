// Package scorer contains Scorer implementations injected into the decision
// engine. The engine itself never depends on a concrete model; deployments
// pick one here at construction time.
package scorer

import (
	"context"
	"math"
	"sort"

	"github.com/mbd888/fraudguard/internal/fraud"
)

// Factor weights. Each factor is normalized to [0, 1] before weighting.
const (
	weightAnomaly  = 0.30
	weightVelocity = 0.25
	weightNovelty  = 0.20
	weightContext  = 0.25
)

// Baseline is a deterministic weighted-factor model. It exists so the service
// runs end-to-end without a trained model artifact and serves as the control
// arm when evaluating trained models. Safe for concurrent use: it holds no
// state.
type Baseline struct{}

// NewBaseline creates the baseline scorer.
func NewBaseline() *Baseline {
	return &Baseline{}
}

// Version identifies the model for FraudResult attribution.
func (b *Baseline) Version() string { return "baseline-v1" }

// Score computes a fraud probability from the feature vector.
func (b *Baseline) Score(ctx context.Context, f fraud.FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	score := weightAnomaly*anomalyFactor(f) +
		weightVelocity*velocityFactor(f) +
		weightNovelty*noveltyFactor(f) +
		weightContext*contextFactor(f)

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return math.Round(score*1000) / 1000, nil
}

// Explain returns per-factor contributions sorted by magnitude.
func (b *Baseline) Explain(ctx context.Context, f fraud.FeatureVector) ([]fraud.Contribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contributions := []fraud.Contribution{
		{Feature: "anomaly", Contribution: weightAnomaly * anomalyFactor(f)},
		{Feature: "velocity", Contribution: weightVelocity * velocityFactor(f)},
		{Feature: "novelty", Contribution: weightNovelty * noveltyFactor(f)},
		{Feature: "context", Contribution: weightContext * contextFactor(f)},
	}
	sort.Slice(contributions, func(i, j int) bool {
		return math.Abs(contributions[i].Contribution) > math.Abs(contributions[j].Contribution)
	})
	return contributions, nil
}

// anomalyFactor: deviation of the amount from the user's behavior. With no
// history, large absolute amounts are suspicious on their own.
func anomalyFactor(f fraud.FeatureVector) float64 {
	if f["user_transaction_count"] == 0 {
		// Cold start: log-scale the raw amount. $100 ≈ 0.42, $5000 ≈ 0.77.
		return clamp(f["amount_log"] / 11)
	}

	z := math.Abs(f["amount_deviation_from_avg"])
	score := z / 4 // 4 sigma saturates the factor
	if f["is_amount_outlier"] == 1 {
		score += 0.2
	}
	return clamp(score)
}

// velocityFactor: burst behavior relative to the trailing windows.
func velocityFactor(f fraud.FeatureVector) float64 {
	var score float64

	// 5+ transactions in the last hour saturates.
	score += clamp(f["transactions_last_hour"] / 5 * 0.6)

	// Sub-minute gap between transactions.
	sinceLast := f["time_since_last_transaction_seconds"]
	if sinceLast < 60 && f["user_transaction_count"] > 0 {
		score += 0.4 * (1 - sinceLast/60)
	}

	return clamp(score)
}

// noveltyFactor: how unestablished the account is.
func noveltyFactor(f fraud.FeatureVector) float64 {
	var score float64

	if f["is_first_transaction"] == 1 {
		score += 0.5
	}
	// Accounts younger than 30 days, scaled.
	if age := f["account_age_days"]; age < 30 {
		score += 0.5 * (1 - age/30)
	}
	return clamp(score)
}

// contextFactor: high-risk transaction context and merchant reputation.
func contextFactor(f fraud.FeatureVector) float64 {
	var score float64

	if f["transaction_type_withdrawal"] == 1 || f["transaction_type_transfer"] == 1 {
		score += 0.3
	}
	if f["channel_atm"] == 1 || f["channel_online"] == 1 {
		score += 0.2
	}
	if f["is_night"] == 1 {
		score += 0.2
	}
	score += clamp(f["merchant_fraud_rate"] * 3)

	return clamp(score)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
