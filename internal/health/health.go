// Package health runs named subsystem probes for the health endpoints.
package health

import (
	"context"
	"sync"
	"time"
)

// Status is the outcome of one subsystem probe.
type Status struct {
	Name      string  `json:"name"`
	Healthy   bool    `json:"healthy"`
	Detail    string  `json:"detail,omitempty"`
	LatencyMs float64 `json:"latencyMs"`
}

// Checker probes one subsystem. It must honor ctx cancellation.
type Checker func(ctx context.Context) Status

// Registry holds named checkers and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	names    []string
	checkers map[string]Checker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

// Register adds a checker under a name. Re-registering a name replaces the
// previous checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.checkers[name]; !exists {
		r.names = append(r.names, name)
	}
	r.checkers[name] = check
}

// CheckAll runs every registered checker concurrently and reports the
// aggregate plus per-subsystem results in registration order.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	names := make([]string, len(r.names))
	copy(names, r.names)
	checkers := make(map[string]Checker, len(r.checkers))
	for name, check := range r.checkers {
		checkers[name] = check
	}
	r.mu.RUnlock()

	statuses = make([]Status, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			start := time.Now()
			st := checkers[name](ctx)
			st.Name = name
			st.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
			statuses[i] = st
		}(i, name)
	}
	wg.Wait()

	healthy = true
	for _, st := range statuses {
		if !st.Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}
