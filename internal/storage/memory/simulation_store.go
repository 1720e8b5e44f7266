package memory

import (
	"context"
	"sort"
	"sync"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/storage"
)

// SimulationStore is an in-memory implementation of storage.SimulationStore.
type SimulationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SimulationRecord // keyed by record_id
}

// NewSimulationStore creates a new in-memory simulation store.
func NewSimulationStore() *SimulationStore {
	return &SimulationStore{
		data: make(map[string]*domain.SimulationRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
func (s *SimulationStore) Insert(_ context.Context, r *domain.SimulationRecord) error {
	if r == nil || r.RecordID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RecordID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RecordID] = copySimulation(r)
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *SimulationStore) GetByID(_ context.Context, recordID string) (*domain.SimulationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[recordID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copySimulation(r), nil
}

// ListByPayer retrieves up to limit records for a payer, newest first.
// A non-positive limit returns all records.
func (s *SimulationStore) ListByPayer(_ context.Context, payer string, limit int) ([]*domain.SimulationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulationRecord
	for _, r := range s.data {
		if r.Payer == payer {
			result = append(result, copySimulation(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SimulatedAt != result[j].SimulatedAt {
			return result[i].SimulatedAt > result[j].SimulatedAt
		}
		return result[i].RecordID < result[j].RecordID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func copySimulation(r *domain.SimulationRecord) *domain.SimulationRecord {
	cp := *r
	if r.UnitPrice != nil {
		p := *r.UnitPrice
		cp.UnitPrice = &p
	}
	cp.Outcome.DiagnosticLines = append([]string(nil), r.Outcome.DiagnosticLines...)
	cp.Outcome.Warnings = append([]string(nil), r.Outcome.Warnings...)
	return &cp
}

// Verify interface compliance at compile time.
var _ storage.SimulationStore = (*SimulationStore)(nil)
