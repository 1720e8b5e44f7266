package storage

import "context"

// SyncProgress is the newest transaction already ingested for a payer.
type SyncProgress struct {
	Payer     string
	Slot      int64
	Signature string
}

// SyncProgressStore persists history ingestion state so restarts resume
// without re-reading or duplicating usage rows.
type SyncProgressStore interface {
	// GetLastSynced returns the last synced position for payer.
	// Returns ErrNotFound if nothing has been synced yet.
	GetLastSynced(ctx context.Context, payer string) (*SyncProgress, error)

	// SetLastSynced saves the last synced position for progress.Payer.
	SetLastSynced(ctx context.Context, progress *SyncProgress) error
}
