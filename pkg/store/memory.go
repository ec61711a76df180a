package store

import (
	"context"
	"slices"
	"sync"
)

// DefaultMemoryLimit is the number of runs a MemoryStore keeps.
const DefaultMemoryLimit = 1000

// MemoryStore keeps the most recent runs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]*Run
	order []string // oldest first
	limit int
}

// NewMemoryStore creates a store that keeps at most limit runs, evicting the
// oldest. A limit of 0 uses DefaultMemoryLimit.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &MemoryStore{runs: make(map[string]*Run), limit: limit}
}

func (s *MemoryStore) SaveRun(ctx context.Context, run *Run) error {
	cp := *run
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = &cp
	for len(s.order) > s.limit {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, notFound(id)
	}
	cp := *run
	return &cp, nil
}

func (s *MemoryStore) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]*Run, 0, limit)
	for _, id := range slices.Backward(s.order) {
		if len(out) == limit {
			break
		}
		cp := *s.runs[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

var _ Store = (*MemoryStore)(nil)
