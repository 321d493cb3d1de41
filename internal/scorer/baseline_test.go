package scorer

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/mbd888/fraudguard/internal/fraud"
)

func daytimeTx(amount float64) *fraud.Transaction {
	return &fraud.Transaction{
		ID:             "txn_base",
		UserID:         "user1",
		MerchantID:     "merchant1",
		Amount:         amount,
		Currency:       "USD",
		Timestamp:      time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC),
		Type:           fraud.TypePurchase,
		Channel:        fraud.ChannelPOS,
		AccountAgeDays: 720,
	}
}

func steadyHistory(ts time.Time) []fraud.HistoryEntry {
	entries := make([]fraud.HistoryEntry, 20)
	for i := range entries {
		entries[i] = fraud.HistoryEntry{
			Amount:    30 + float64(i%5),
			Timestamp: ts.Add(-time.Duration(20-i) * 6 * time.Hour),
		}
	}
	return entries
}

func TestBaselineOrdersRiskyAboveNormal(t *testing.T) {
	b := NewBaseline()
	ctx := context.Background()

	// Established user, in-pattern purchase
	normal := daytimeTx(32)
	normalFeatures := fraud.ExtractFeatures(normal, steadyHistory(normal.Timestamp), fraud.MerchantStats{
		AvgAmount: 30, TransactionCount: 5000, FraudRate: 0.005,
	})
	normalScore, err := b.Score(ctx, normalFeatures)
	if err != nil {
		t.Fatal(err)
	}

	// Brand-new account, night-time withdrawal far above any history
	risky := daytimeTx(3000)
	risky.Timestamp = time.Date(2025, 3, 12, 3, 0, 0, 0, time.UTC)
	risky.Type = fraud.TypeWithdrawal
	risky.Channel = fraud.ChannelATM
	risky.IsFirstTransaction = true
	risky.AccountAgeDays = 1
	riskyFeatures := fraud.ExtractFeatures(risky, nil, fraud.MerchantStats{FraudRate: 0.1})
	riskyScore, err := b.Score(ctx, riskyFeatures)
	if err != nil {
		t.Fatal(err)
	}

	if riskyScore <= normalScore {
		t.Errorf("risky score %f not above normal score %f", riskyScore, normalScore)
	}
	if normalScore >= 0.3 {
		t.Errorf("in-pattern transaction scored too high: %f", normalScore)
	}
	if riskyScore < 0.5 {
		t.Errorf("obviously risky transaction scored too low: %f", riskyScore)
	}
}

func TestBaselineScoreRange(t *testing.T) {
	b := NewBaseline()
	ctx := context.Background()

	extremes := []fraud.FeatureVector{
		{}, // all-zero vector
		{
			"amount_log":                          25,
			"amount_deviation_from_avg":           100,
			"is_amount_outlier":                   1,
			"transactions_last_hour":              50,
			"time_since_last_transaction_seconds": 0,
			"user_transaction_count":              100,
			"is_first_transaction":                1,
			"account_age_days":                    0,
			"transaction_type_withdrawal":         1,
			"channel_atm":                         1,
			"is_night":                            1,
			"merchant_fraud_rate":                 1,
		},
	}

	for i, f := range extremes {
		score, err := b.Score(ctx, f)
		if err != nil {
			t.Fatal(err)
		}
		if score < 0 || score > 1 || math.IsNaN(score) {
			t.Errorf("vector %d: score %f out of [0, 1]", i, score)
		}
	}
}

func TestBaselineDeterministic(t *testing.T) {
	b := NewBaseline()
	ctx := context.Background()

	tx := daytimeTx(500)
	f := fraud.ExtractFeatures(tx, steadyHistory(tx.Timestamp), fraud.MerchantStats{})

	first, err := b.Score(ctx, f)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := b.Score(ctx, f)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("score not deterministic: %f vs %f", first, again)
		}
	}
}

func TestBaselineExplainSortedByMagnitude(t *testing.T) {
	b := NewBaseline()

	tx := daytimeTx(3000)
	tx.Type = fraud.TypeWithdrawal
	tx.IsFirstTransaction = true
	tx.AccountAgeDays = 1
	f := fraud.ExtractFeatures(tx, nil, fraud.MerchantStats{})

	contributions, err := b.Explain(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if len(contributions) != 4 {
		t.Fatalf("expected 4 factor contributions, got %d", len(contributions))
	}
	for i := 1; i < len(contributions); i++ {
		if math.Abs(contributions[i].Contribution) > math.Abs(contributions[i-1].Contribution) {
			t.Errorf("contributions not sorted by magnitude: %+v", contributions)
		}
	}
}

func TestBaselineRespectsCancelledContext(t *testing.T) {
	b := NewBaseline()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Score(ctx, fraud.FeatureVector{}); err == nil {
		t.Error("expected error from cancelled context")
	}
	if _, err := b.Explain(ctx, fraud.FeatureVector{}); err == nil {
		t.Error("expected error from cancelled context")
	}
}
