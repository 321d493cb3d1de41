package fraud

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	evalDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudguard",
		Subsystem: "engine",
		Name:      "decisions_total",
		Help:      "Total evaluations by decision.",
	}, []string{"decision"}) // "approve", "review", "decline"

	evalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudguard",
		Subsystem: "engine",
		Name:      "evaluate_duration_seconds",
		Help:      "End-to-end transaction evaluation latency in seconds.",
		Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	evalScorerFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudguard",
		Subsystem: "engine",
		Name:      "scorer_failures_total",
		Help:      "Total fail-safe evaluations by cause.",
	}, []string{"cause"}) // "score", "timeout", "breaker_open"

	evalValidationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudguard",
		Subsystem: "engine",
		Name:      "validation_failures_total",
		Help:      "Total transactions rejected before extraction.",
	})

	evalScoreDistribution = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudguard",
		Subsystem: "engine",
		Name:      "fraud_score",
		Help:      "Distribution of fraud scores.",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
	})

	activeEntities = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudguard",
		Subsystem: "engine",
		Name:      "active_entities",
		Help:      "Number of entities with a live history window.",
	})

	mediumThresholdGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudguard",
		Subsystem: "engine",
		Name:      "medium_risk_threshold",
		Help:      "Current adaptive medium-risk threshold.",
	})

	feedbackRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudguard",
		Subsystem: "engine",
		Name:      "feedback_records",
		Help:      "Accumulated calibration feedback records.",
	})
)

func init() {
	prometheus.MustRegister(
		evalDecisions,
		evalDuration,
		evalScorerFailures,
		evalValidationFailures,
		evalScoreDistribution,
		activeEntities,
		mediumThresholdGauge,
		feedbackRecords,
	)
}
