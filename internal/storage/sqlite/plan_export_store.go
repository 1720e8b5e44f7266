package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/storage"
)

// PlanExportStore implements storage.PlanExportStore on SQLite.
type PlanExportStore struct {
	db *DB
}

// NewPlanExportStore creates a new PlanExportStore.
func NewPlanExportStore(db *DB) *PlanExportStore {
	return &PlanExportStore{db: db}
}

// Compile-time interface check.
var _ storage.PlanExportStore = (*PlanExportStore)(nil)

// Insert adds a new export. Returns ErrDuplicateKey if export_id exists.
func (s *PlanExportStore) Insert(ctx context.Context, e *domain.PlanExport) error {
	if e == nil || e.ExportID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plan_exports (export_id, payer, plan_count, payload, exported_at)
		VALUES (?, ?, ?, ?, ?)
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
	err := s.db.QueryRowContext(ctx, `
		SELECT export_id, payer, plan_count, payload, exported_at
		FROM plan_exports WHERE export_id = ?
	`, exportID).Scan(&e.ExportID, &e.Payer, &e.PlanCount, &e.Payload, &e.ExportedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get plan export: %w", err)
	}
	return &e, nil
}

// ListRecent retrieves up to limit exports, newest first.
func (s *PlanExportStore) ListRecent(ctx context.Context, limit int) ([]*domain.PlanExport, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT export_id, payer, plan_count, payload, exported_at
		FROM plan_exports
		ORDER BY exported_at DESC, export_id ASC
		LIMIT ?
	`, limit)
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
