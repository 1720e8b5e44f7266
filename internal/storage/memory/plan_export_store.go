package memory

import (
	"context"
	"sort"
	"sync"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/storage"
)

// PlanExportStore is an in-memory implementation of storage.PlanExportStore.
type PlanExportStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PlanExport // keyed by export_id
}

// NewPlanExportStore creates a new in-memory plan export store.
func NewPlanExportStore() *PlanExportStore {
	return &PlanExportStore{
		data: make(map[string]*domain.PlanExport),
	}
}

// Insert adds a new export. Returns ErrDuplicateKey if export_id exists.
func (s *PlanExportStore) Insert(_ context.Context, e *domain.PlanExport) error {
	if e == nil || e.ExportID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ExportID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[e.ExportID] = copyExport(e)
	return nil
}

// GetByID retrieves an export by its ID. Returns ErrNotFound if not exists.
func (s *PlanExportStore) GetByID(_ context.Context, exportID string) (*domain.PlanExport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[exportID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyExport(e), nil
}

// ListRecent retrieves up to limit exports, newest first.
func (s *PlanExportStore) ListRecent(_ context.Context, limit int) ([]*domain.PlanExport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PlanExport, 0, len(s.data))
	for _, e := range s.data {
		result = append(result, copyExport(e))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExportedAt != result[j].ExportedAt {
			return result[i].ExportedAt > result[j].ExportedAt
		}
		return result[i].ExportID < result[j].ExportID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func copyExport(e *domain.PlanExport) *domain.PlanExport {
	cp := *e
	cp.Payload = append([]byte(nil), e.Payload...)
	return &cp
}

// Verify interface compliance at compile time.
var _ storage.PlanExportStore = (*PlanExportStore)(nil)
