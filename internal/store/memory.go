package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/antiwork/flexile-sub003/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	capTables map[string]*model.CapTable
	scenarios map[string]*model.Scenario
	payouts   map[string][]model.Payout // scenario ID → payouts
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		capTables: make(map[string]*model.CapTable),
		scenarios: make(map[string]*model.Scenario),
		payouts:   make(map[string][]model.Payout),
	}
}

func (s *MemoryStore) CreateCapTable(_ context.Context, ct *model.CapTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.capTables[ct.ID]; exists {
		return fmt.Errorf("cap table %s already exists", ct.ID)
	}

	// Store a copy to avoid external mutation.
	cp := *ct
	cp.Structure = ct.Structure.Clone()
	s.capTables[ct.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCapTable(_ context.Context, id string) (*model.CapTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ct, ok := s.capTables[id]
	if !ok {
		return nil, fmt.Errorf("cap table %s: %w", id, ErrNotFound)
	}
	cp := *ct
	cp.Structure = ct.Structure.Clone()
	return &cp, nil
}

func (s *MemoryStore) ListCapTables(_ context.Context) ([]model.CapTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.CapTable, 0, len(s.capTables))
	for _, ct := range s.capTables {
		cp := *ct
		cp.Structure = ct.Structure.Clone()
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemoryStore) SaveScenario(_ context.Context, sc *model.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sc
	s.scenarios[sc.ID] = &cp
	return nil
}

func (s *MemoryStore) GetScenario(_ context.Context, id string) (*model.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("scenario %s: %w", id, ErrNotFound)
	}
	cp := *sc
	return &cp, nil
}

func (s *MemoryStore) ListScenariosByCapTable(_ context.Context, capTableID string) ([]model.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Scenario
	for _, sc := range s.scenarios {
		if sc.CapTableID == capTableID {
			out = append(out, *sc)
		}
	}
	return out, nil
}

func (s *MemoryStore) ReplacePayouts(_ context.Context, scenarioID string, payouts []model.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]model.Payout, len(payouts))
	copy(cp, payouts)
	s.payouts[scenarioID] = cp
	return nil
}

func (s *MemoryStore) GetPayoutsByScenario(_ context.Context, scenarioID string) ([]model.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.payouts[scenarioID]
	cp := make([]model.Payout, len(stored))
	copy(cp, stored)
	return cp, nil
}
