package storage

import (
	"context"

	"solana-fee-lab/internal/domain"
)

// SimulationStore provides access to simulation_records storage.
type SimulationStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
	Insert(ctx context.Context, r *domain.SimulationRecord) error

	// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, recordID string) (*domain.SimulationRecord, error)

	// ListByPayer retrieves up to limit records for a payer, newest first.
	ListByPayer(ctx context.Context, payer string, limit int) ([]*domain.SimulationRecord, error)
}

// PlanExportStore provides access to plan_exports storage.
type PlanExportStore interface {
	// Insert adds a new export. Returns ErrDuplicateKey if export_id exists.
	Insert(ctx context.Context, e *domain.PlanExport) error

	// GetByID retrieves an export by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, exportID string) (*domain.PlanExport, error)

	// ListRecent retrieves up to limit exports, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.PlanExport, error)
}

// FeeSampleStore provides access to fee_samples storage.
type FeeSampleStore interface {
	// InsertBulk adds multiple samples atomically.
	// Fails entire batch on duplicate (filter_key, observed_at_slot, fetched_at).
	InsertBulk(ctx context.Context, samples []*domain.StoredFeeSample) error

	// GetBySlotRange retrieves samples for a filter key within [from, to] (inclusive),
	// ordered by slot ASC.
	GetBySlotRange(ctx context.Context, filterKey string, from, to int64) ([]*domain.StoredFeeSample, error)
}

// UsageStore provides access to transaction_usage storage.
type UsageStore interface {
	// Insert adds a usage row. Returns ErrDuplicateKey if signature exists.
	Insert(ctx context.Context, u *domain.TransactionUsage) error

	// GetByPayer retrieves up to limit usage rows for a payer, newest slot first.
	GetByPayer(ctx context.Context, payer string, limit int) ([]*domain.TransactionUsage, error)
}
