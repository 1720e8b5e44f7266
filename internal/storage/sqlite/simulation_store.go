package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/storage"
)

// SimulationStore implements storage.SimulationStore on SQLite.
// The outcome is stored as a JSON document.
type SimulationStore struct {
	db *DB
}

// NewSimulationStore creates a new SimulationStore.
func NewSimulationStore(db *DB) *SimulationStore {
	return &SimulationStore{db: db}
}

// Compile-time interface check.
var _ storage.SimulationStore = (*SimulationStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
func (s *SimulationStore) Insert(ctx context.Context, r *domain.SimulationRecord) error {
	if r == nil || r.RecordID == "" {
		return storage.ErrInvalidInput
	}

	outcome, err := json.Marshal(r.Outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	var unitPrice sql.NullInt64
	if r.UnitPrice != nil {
		unitPrice = sql.NullInt64{Int64: int64(*r.UnitPrice), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO simulation_records (record_id, payer, unit_limit, unit_price, outcome, simulated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.RecordID, r.Payer, r.UnitLimit, unitPrice, string(outcome), r.SimulatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert simulation record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *SimulationStore) GetByID(ctx context.Context, recordID string) (*domain.SimulationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT record_id, payer, unit_limit, unit_price, outcome, simulated_at
		FROM simulation_records WHERE record_id = ?
	`, recordID)

	r, err := scanSimulation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get simulation record: %w", err)
	}
	return r, nil
}

// ListByPayer retrieves up to limit records for a payer, newest first.
func (s *SimulationStore) ListByPayer(ctx context.Context, payer string, limit int) ([]*domain.SimulationRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, payer, unit_limit, unit_price, outcome, simulated_at
		FROM simulation_records
		WHERE payer = ?
		ORDER BY simulated_at DESC, record_id ASC
		LIMIT ?
	`, payer, limit)
	if err != nil {
		return nil, fmt.Errorf("query simulations by payer: %w", err)
	}
	defer rows.Close()

	var records []*domain.SimulationRecord
	for rows.Next() {
		r, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulation record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSimulation(row scanner) (*domain.SimulationRecord, error) {
	var r domain.SimulationRecord
	var unitPrice sql.NullInt64
	var outcome string

	if err := row.Scan(&r.RecordID, &r.Payer, &r.UnitLimit, &unitPrice, &outcome, &r.SimulatedAt); err != nil {
		return nil, err
	}
	if unitPrice.Valid {
		p := uint64(unitPrice.Int64)
		r.UnitPrice = &p
	}
	if err := json.Unmarshal([]byte(outcome), &r.Outcome); err != nil {
		return nil, fmt.Errorf("decode outcome: %w", err)
	}
	return &r, nil
}
