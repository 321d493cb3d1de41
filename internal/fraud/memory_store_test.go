package fraud

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreResultRoundtrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tx := testTx("txn_ms1", "user_ms", 50)
	result := &FraudResult{
		TransactionID:  "txn_ms1",
		FraudScore:     0.7,
		IsFraud:        true,
		RiskLevel:      RiskMedium,
		Decision:       DecisionReview,
		TopRiskFactors: []Contribution{{Feature: "amount_log", Contribution: 0.4}},
		ModelVersion:   "stub-v1",
		Timestamp:      time.Now(),
	}

	if err := store.SaveResult(ctx, tx, result); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetResult(ctx, "txn_ms1")
	if err != nil {
		t.Fatal(err)
	}
	if got.FraudScore != 0.7 || got.Decision != DecisionReview {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	// Stored copies are isolated from caller mutations
	got.TopRiskFactors[0].Contribution = -1
	again, _ := store.GetResult(ctx, "txn_ms1")
	if again.TopRiskFactors[0].Contribution != 0.4 {
		t.Error("mutating a returned result leaked into the store")
	}
}

func TestMemoryStoreResultNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.GetResult(context.Background(), "missing")
	if !errors.Is(err, ErrResultNotFound) {
		t.Errorf("expected ErrResultNotFound, got %v", err)
	}
}

func TestMemoryStoreFeedback(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := &FeedbackRecord{FraudScore: 0.5, ActualFraud: i%2 == 0, Timestamp: time.Now()}
		if err := store.SaveFeedback(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	if store.FeedbackCount() != 3 {
		t.Errorf("expected 3 feedback records, got %d", store.FeedbackCount())
	}
}
