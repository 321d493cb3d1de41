package fraud

import (
	"math"
	"sync"
	"time"
)

// Calibration defaults.
const (
	DefaultMinFeedbackSamples = 100
	calibrationWindow         = 1000
	gridLow                   = 0.1
	gridHigh                  = 0.9
	gridSteps                 = 50
)

// Calibrator re-tunes the medium-risk threshold from labeled feedback to hit
// target precision and recall. Only the medium threshold adapts; the high
// threshold stays a fixed configuration value so that the decline boundary
// never drifts without an operator decision.
type Calibrator struct {
	mu         sync.Mutex
	feedback   []FeedbackRecord
	threshold  float64
	minSamples int

	targetPrecision float64
	targetRecall    float64
}

// NewCalibrator creates a calibrator seeded with the initial medium-risk
// threshold. minSamples <= 0 uses the default.
func NewCalibrator(initialThreshold, targetPrecision, targetRecall float64, minSamples int) *Calibrator {
	if minSamples <= 0 {
		minSamples = DefaultMinFeedbackSamples
	}
	return &Calibrator{
		threshold:       initialThreshold,
		targetPrecision: targetPrecision,
		targetRecall:    targetRecall,
		minSamples:      minSamples,
	}
}

// AddFeedback appends one labeled outcome. A zero timestamp is stamped with
// the current time.
func (c *Calibrator) AddFeedback(score float64, actualFraud bool, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	c.mu.Lock()
	c.feedback = append(c.feedback, FeedbackRecord{
		FraudScore:  score,
		ActualFraud: actualFraud,
		Timestamp:   ts,
	})
	c.mu.Unlock()
}

// FeedbackCount returns the number of accumulated feedback records.
func (c *Calibrator) FeedbackCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.feedback)
}

// Threshold returns the current medium-risk threshold.
func (c *Calibrator) Threshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

// Optimize sweeps an evenly spaced grid of candidate thresholds over the most
// recent feedback and selects the one minimizing
// |precision - target| + |recall - target|. Ties resolve to the lowest
// candidate, making the sweep deterministic. With fewer than the minimum
// sample count it is a documented no-op returning the current threshold.
func (c *Calibrator) Optimize() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.feedback) < c.minSamples {
		return c.threshold
	}

	recent := c.feedback
	if len(recent) > calibrationWindow {
		recent = recent[len(recent)-calibrationWindow:]
	}

	best := c.threshold
	bestCost := math.Inf(1)

	for i := 0; i < gridSteps; i++ {
		candidate := gridLow + (gridHigh-gridLow)*float64(i)/float64(gridSteps-1)

		var tp, fp, fn int
		for _, rec := range recent {
			predicted := rec.FraudScore >= candidate
			switch {
			case predicted && rec.ActualFraud:
				tp++
			case predicted && !rec.ActualFraud:
				fp++
			case !predicted && rec.ActualFraud:
				fn++
			}
		}

		precision := float64(tp) / (float64(tp+fp) + epsilon)
		recall := float64(tp) / (float64(tp+fn) + epsilon)

		cost := math.Abs(precision-c.targetPrecision) + math.Abs(recall-c.targetRecall)
		if cost < bestCost {
			bestCost = cost
			best = candidate
		}
	}

	c.threshold = best
	return best
}
