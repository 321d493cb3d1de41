package fraud

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory ResultStore/FeedbackStore for demo and test
// use. Production deployments set DATABASE_URL and get the Postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	results  map[string]*FraudResult // transactionID -> result
	feedback []*FeedbackRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results: make(map[string]*FraudResult),
	}
}

func (m *MemoryStore) SaveResult(ctx context.Context, tx *Transaction, result *FraudResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *result
	cp.TopRiskFactors = append([]Contribution(nil), result.TopRiskFactors...)
	m.results[result.TransactionID] = &cp
	return nil
}

func (m *MemoryStore) GetResult(ctx context.Context, transactionID string) (*FraudResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result, ok := m.results[transactionID]
	if !ok {
		return nil, ErrResultNotFound
	}
	cp := *result
	cp.TopRiskFactors = append([]Contribution(nil), result.TopRiskFactors...)
	return &cp, nil
}

func (m *MemoryStore) SaveFeedback(ctx context.Context, record *FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *record
	m.feedback = append(m.feedback, &cp)
	return nil
}

// FeedbackCount reports stored feedback records (test helper).
func (m *MemoryStore) FeedbackCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.feedback)
}
