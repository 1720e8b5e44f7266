package memory

import (
	"context"
	"sync"

	"solana-fee-lab/internal/storage"
)

// SyncProgressStore is an in-memory implementation of storage.SyncProgressStore.
type SyncProgressStore struct {
	mu       sync.RWMutex
	progress map[string]storage.SyncProgress // keyed by payer
}

// NewSyncProgressStore creates a new in-memory sync progress store.
func NewSyncProgressStore() *SyncProgressStore {
	return &SyncProgressStore{
		progress: make(map[string]storage.SyncProgress),
	}
}

// GetLastSynced returns the last synced position for payer.
func (s *SyncProgressStore) GetLastSynced(_ context.Context, payer string) (*storage.SyncProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[payer]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// SetLastSynced saves the last synced position.
func (s *SyncProgressStore) SetLastSynced(_ context.Context, progress *storage.SyncProgress) error {
	if progress == nil || progress.Payer == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[progress.Payer] = *progress
	return nil
}

// Verify interface compliance at compile time.
var _ storage.SyncProgressStore = (*SyncProgressStore)(nil)
