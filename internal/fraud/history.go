package fraud

import (
	"sync"
	"time"
)

// DefaultWindowCapacity bounds each entity's rolling history.
const DefaultWindowCapacity = 100

// HistoryEntry is one recorded transaction in an entity's window.
type HistoryEntry struct {
	Amount     float64
	Timestamp  time.Time
	MerchantID string
}

// entityWindow holds one entity's bounded history. Its mutex serializes
// concurrent writes for the same entity; different entities lock
// independently.
type entityWindow struct {
	mu       sync.Mutex
	entries  []HistoryEntry
	lastSeen time.Time
}

// HistoryStore keeps capacity-bounded rolling windows of recent activity per
// entity id plus an aggregate table of merchant statistics. Windows are
// created lazily on first write and evicted FIFO once capacity is reached.
// Unknown entities are never an error: Snapshot returns an empty window and
// MerchantStatistics returns zero values.
type HistoryStore struct {
	windows  sync.Map // entityID -> *entityWindow
	capacity int

	merchantMu sync.RWMutex
	merchants  map[string]MerchantStats
}

// NewHistoryStore creates a history store. capacity <= 0 uses the default.
func NewHistoryStore(capacity int) *HistoryStore {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &HistoryStore{
		capacity:  capacity,
		merchants: make(map[string]MerchantStats),
	}
}

// Record appends one entry to the entity's window, dropping the oldest entry
// when the window is full. Entries are kept in arrival order; the store does
// not resequence by timestamp.
func (s *HistoryStore) Record(entityID string, amount float64, ts time.Time, merchantID string) {
	w := s.window(entityID)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries = append(w.entries, HistoryEntry{
		Amount:     amount,
		Timestamp:  ts,
		MerchantID: merchantID,
	})
	if len(w.entries) > s.capacity {
		w.entries = w.entries[len(w.entries)-s.capacity:]
	}
	w.lastSeen = time.Now()
}

// Snapshot returns a copy of the entity's current window. The copy is safe to
// read without locks and never observes later writes.
func (s *HistoryStore) Snapshot(entityID string) []HistoryEntry {
	v, ok := s.windows.Load(entityID)
	if !ok {
		return nil
	}
	w := v.(*entityWindow)
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]HistoryEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// MerchantStatistics looks up aggregate stats for a merchant. Unknown
// merchants return the zero value.
func (s *HistoryStore) MerchantStatistics(merchantID string) MerchantStats {
	s.merchantMu.RLock()
	defer s.merchantMu.RUnlock()
	return s.merchants[merchantID]
}

// SetMerchantStatistics replaces a merchant's aggregate stats. Aggregates are
// computed by an external batch job and fed in out-of-band.
func (s *HistoryStore) SetMerchantStatistics(merchantID string, stats MerchantStats) {
	s.merchantMu.Lock()
	s.merchants[merchantID] = stats
	s.merchantMu.Unlock()
}

// EntityCount returns the number of entities with a live window.
func (s *HistoryStore) EntityCount() int {
	n := 0
	s.windows.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// EvictIdle removes windows with no activity since the cutoff and returns how
// many were dropped. The per-entity capacity bound keeps each window small,
// but the entity set itself is unbounded without this sweep.
func (s *HistoryStore) EvictIdle(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	evicted := 0
	s.windows.Range(func(key, value any) bool {
		w := value.(*entityWindow)
		w.mu.Lock()
		idle := w.lastSeen.Before(cutoff)
		w.mu.Unlock()
		if idle {
			s.windows.Delete(key)
			evicted++
		}
		return true
	})
	return evicted
}

func (s *HistoryStore) window(entityID string) *entityWindow {
	v, _ := s.windows.LoadOrStore(entityID, &entityWindow{})
	return v.(*entityWindow)
}
