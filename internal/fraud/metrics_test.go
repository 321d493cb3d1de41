package fraud

import (
	"context"
	"errors"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestEvaluateIncrementsDecisionCounter(t *testing.T) {
	evalDecisions.Reset()

	engine := NewEngine(DefaultEngineConfig(), &stubScorer{score: 0.2})
	if _, err := engine.Evaluate(context.Background(), testTx("txn_m1", "user_m1", 50)); err != nil {
		t.Fatal(err)
	}

	m := &dto.Metric{}
	counter, err := evalDecisions.GetMetricWithLabelValues("approve")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	_ = counter.Write(m)

	if m.Counter.GetValue() != 1.0 {
		t.Errorf("expected approve counter 1, got %f", m.Counter.GetValue())
	}
}

func TestScorerFailureCauseLabels(t *testing.T) {
	evalScorerFailures.Reset()

	engine := NewEngine(DefaultEngineConfig(), &stubScorer{err: errors.New("boom")})
	if _, err := engine.Evaluate(context.Background(), testTx("txn_m2", "user_m2", 50)); err != nil {
		t.Fatal(err)
	}

	m := &dto.Metric{}
	counter, err := evalScorerFailures.GetMetricWithLabelValues("score")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	_ = counter.Write(m)

	if m.Counter.GetValue() != 1.0 {
		t.Errorf("expected score-failure counter 1, got %f", m.Counter.GetValue())
	}
}
