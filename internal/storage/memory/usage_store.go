package memory

import (
	"context"
	"sort"
	"sync"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/storage"
)

// UsageStore is an in-memory implementation of storage.UsageStore.
type UsageStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransactionUsage // keyed by signature
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{
		data: make(map[string]*domain.TransactionUsage),
	}
}

// Insert adds a usage row. Returns ErrDuplicateKey if signature exists.
func (s *UsageStore) Insert(_ context.Context, u *domain.TransactionUsage) error {
	if u == nil || u.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[u.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[u.Signature] = copyUsage(u)
	return nil
}

// GetByPayer retrieves up to limit usage rows for a payer, newest slot first.
func (s *UsageStore) GetByPayer(_ context.Context, payer string, limit int) ([]*domain.TransactionUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionUsage
	for _, u := range s.data {
		if u.Payer == payer {
			result = append(result, copyUsage(u))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Slot != result[j].Slot {
			return result[i].Slot > result[j].Slot
		}
		return result[i].Signature < result[j].Signature
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func copyUsage(u *domain.TransactionUsage) *domain.TransactionUsage {
	cp := *u
	cp.Instructions = append([]domain.InstructionUsage(nil), u.Instructions...)
	return &cp
}

// Verify interface compliance at compile time.
var _ storage.UsageStore = (*UsageStore)(nil)
