package postgres

import (
	"context"
	"fmt"

	"solana-fee-lab/internal/storage"
)

// SyncProgressStore is a PostgreSQL implementation of storage.SyncProgressStore.
// One row per payer in sync_progress.
type SyncProgressStore struct {
	pool *Pool
}

// NewSyncProgressStore creates a new PostgreSQL sync progress store.
func NewSyncProgressStore(pool *Pool) *SyncProgressStore {
	return &SyncProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SyncProgressStore = (*SyncProgressStore)(nil)

// GetLastSynced returns the last synced position for payer.
func (s *SyncProgressStore) GetLastSynced(ctx context.Context, payer string) (*storage.SyncProgress, error) {
	progress := storage.SyncProgress{Payer: payer}
	err := s.pool.QueryRow(ctx, `
		SELECT slot, signature
		FROM sync_progress
		WHERE payer = $1
	`, payer).Scan(&progress.Slot, &progress.Signature)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get sync progress: %w", err)
	}
	return &progress, nil
}

// SetLastSynced saves the last synced position.
// Uses upsert to handle initial insert and subsequent updates.
func (s *SyncProgressStore) SetLastSynced(ctx context.Context, progress *storage.SyncProgress) error {
	if progress == nil || progress.Payer == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_progress (payer, slot, signature, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (payer) DO UPDATE
		SET slot = EXCLUDED.slot,
		    signature = EXCLUDED.signature,
		    updated_at = NOW()
	`, progress.Payer, progress.Slot, progress.Signature)
	if err != nil {
		return fmt.Errorf("set sync progress: %w", err)
	}
	return nil
}
