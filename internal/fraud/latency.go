package fraud

import (
	"math"
	"sort"
	"sync"
)

// DefaultLatencyBufferSize bounds the processing-time sample buffer.
const DefaultLatencyBufferSize = 1000

// LatencyStats summarizes the current sample buffer. Count is zero when no
// samples exist; callers must not divide by it unchecked.
type LatencyStats struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"meanMs"`
	P50Ms  float64 `json:"p50Ms"`
	P95Ms  float64 `json:"p95Ms"`
	P99Ms  float64 `json:"p99Ms"`
	MinMs  float64 `json:"minMs"`
	MaxMs  float64 `json:"maxMs"`
}

// LatencyRecorder keeps a fixed-capacity ring buffer of processing-time
// samples plus monotonically increasing decision counters. Safe for
// concurrent use.
type LatencyRecorder struct {
	mu      sync.Mutex
	samples []float64
	next    int
	filled  bool

	totalTransactions  uint64
	totalFraudDetected uint64
}

// NewLatencyRecorder creates a recorder. size <= 0 uses the default.
func NewLatencyRecorder(size int) *LatencyRecorder {
	if size <= 0 {
		size = DefaultLatencyBufferSize
	}
	return &LatencyRecorder{samples: make([]float64, size)}
}

// Record appends a processing-time sample (evicting the oldest once full) and
// bumps the transaction counter, plus the fraud counter when flagged.
func (r *LatencyRecorder) Record(durationMs float64, isFraud bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[r.next] = durationMs
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.filled = true
	}

	r.totalTransactions++
	if isFraud {
		r.totalFraudDetected++
	}
}

// Counters returns the lifetime transaction and flagged-fraud totals.
func (r *LatencyRecorder) Counters() (total, fraud uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalTransactions, r.totalFraudDetected
}

// Stats computes summary statistics over the current buffer contents.
func (r *LatencyRecorder) Stats() LatencyStats {
	r.mu.Lock()
	n := r.next
	if r.filled {
		n = len(r.samples)
	}
	buf := make([]float64, n)
	copy(buf, r.samples[:n])
	r.mu.Unlock()

	if n == 0 {
		return LatencyStats{}
	}

	sort.Float64s(buf)

	var sum float64
	for _, v := range buf {
		sum += v
	}

	return LatencyStats{
		Count:  n,
		MeanMs: sum / float64(n),
		P50Ms:  percentile(buf, 50),
		P95Ms:  percentile(buf, 95),
		P99Ms:  percentile(buf, 99),
		MinMs:  buf[0],
		MaxMs:  buf[n-1],
	}
}

// percentile computes the p-th percentile of sorted samples using linear
// interpolation between closest ranks (numpy default).
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
