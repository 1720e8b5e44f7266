package memory

import (
	"context"
	"sort"
	"sync"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/storage"
)

// feeSampleKey is the unique key of a stored fee sample.
type feeSampleKey struct {
	filterKey string
	slot      int64
	fetchedAt int64
}

// FeeSampleStore is an in-memory implementation of storage.FeeSampleStore.
type FeeSampleStore struct {
	mu   sync.RWMutex
	data map[feeSampleKey]*domain.StoredFeeSample
}

// NewFeeSampleStore creates a new in-memory fee sample store.
func NewFeeSampleStore() *FeeSampleStore {
	return &FeeSampleStore{
		data: make(map[feeSampleKey]*domain.StoredFeeSample),
	}
}

// InsertBulk adds multiple samples atomically.
// Fails entire batch on duplicate (filter_key, observed_at_slot, fetched_at).
func (s *FeeSampleStore) InsertBulk(_ context.Context, samples []*domain.StoredFeeSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[feeSampleKey]bool, len(samples))
	for _, fs := range samples {
		if fs == nil {
			return storage.ErrInvalidInput
		}
		key := feeSampleKey{fs.FilterKey, fs.ObservedAtSlot, fs.FetchedAt}
		if _, exists := s.data[key]; exists || seen[key] {
			return storage.ErrDuplicateKey
		}
		seen[key] = true
	}

	for _, fs := range samples {
		cp := *fs
		s.data[feeSampleKey{fs.FilterKey, fs.ObservedAtSlot, fs.FetchedAt}] = &cp
	}
	return nil
}

// GetBySlotRange retrieves samples for a filter key within [from, to] (inclusive),
// ordered by slot ASC.
func (s *FeeSampleStore) GetBySlotRange(_ context.Context, filterKey string, from, to int64) ([]*domain.StoredFeeSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StoredFeeSample
	for key, fs := range s.data {
		if key.filterKey == filterKey && key.slot >= from && key.slot <= to {
			cp := *fs
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ObservedAtSlot != result[j].ObservedAtSlot {
			return result[i].ObservedAtSlot < result[j].ObservedAtSlot
		}
		return result[i].FetchedAt < result[j].FetchedAt
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.FeeSampleStore = (*FeeSampleStore)(nil)
