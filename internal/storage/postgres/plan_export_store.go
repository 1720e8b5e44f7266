package postgres

import (
	"context"
	"fmt"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/storage"
)

// PlanExportStore implements storage.PlanExportStore using PostgreSQL.
type PlanExportStore struct {
	pool *Pool
}

// NewPlanExportStore creates a new PlanExportStore.
func NewPlanExportStore(pool *Pool) *PlanExportStore {
	return &PlanExportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PlanExportStore = (*PlanExportStore)(nil)

// Insert adds a new export. Returns ErrDuplicateKey if export_id exists.
func (s *PlanExportStore) Insert(ctx context.Context, e *domain.PlanExport) error {
	if e == nil || e.ExportID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO plan_exports (export_id, payer, plan_count, payload, exported_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ExportID, e.Payer, e.PlanCount, e.Payload, e.ExportedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert plan export: %w", err)
	}
	return nil
}

// GetByID retrieves an export by its ID. Returns ErrNotFound if not exists.
func (s *PlanExportStore) GetByID(ctx context.Context, exportID string) (*domain.PlanExport, error) {
	var e domain.PlanExport
	err := s.pool.QueryRow(ctx, `
		SELECT export_id, payer, plan_count, payload, exported_at
		FROM plan_exports
		WHERE export_id = $1
	`, exportID).Scan(&e.ExportID, &e.Payer, &e.PlanCount, &e.Payload, &e.ExportedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get plan export: %w", err)
	}
	return &e, nil
}

// ListRecent retrieves up to limit exports, newest first.
func (s *PlanExportStore) ListRecent(ctx context.Context, limit int) ([]*domain.PlanExport, error) {
	query := `
		SELECT export_id, payer, plan_count, payload, exported_at
		FROM plan_exports
		ORDER BY exported_at DESC, export_id ASC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent plan exports: %w", err)
	}
	defer rows.Close()

	var exports []*domain.PlanExport
	for rows.Next() {
		var e domain.PlanExport
		if err := rows.Scan(&e.ExportID, &e.Payer, &e.PlanCount, &e.Payload, &e.ExportedAt); err != nil {
			return nil, fmt.Errorf("scan plan export: %w", err)
		}
		exports = append(exports, &e)
	}
	return exports, rows.Err()
}
