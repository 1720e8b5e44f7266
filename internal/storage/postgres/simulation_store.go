package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/storage"
)

// SimulationStore implements storage.SimulationStore using PostgreSQL.
type SimulationStore struct {
	pool *Pool
}

// NewSimulationStore creates a new SimulationStore.
func NewSimulationStore(pool *Pool) *SimulationStore {
	return &SimulationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SimulationStore = (*SimulationStore)(nil)

const simulationColumns = `
	record_id, payer, unit_limit, unit_price,
	succeeded, units_consumed, base_fee, computed_fee,
	diagnostic_lines, warnings, failure_reason, failure_kind, path,
	simulated_at`

// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
func (s *SimulationStore) Insert(ctx context.Context, r *domain.SimulationRecord) (err error) {
	if r == nil || r.RecordID == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("insert_simulation", start, err) }()

	var unitPrice *int64
	if r.UnitPrice != nil {
		p := int64(*r.UnitPrice)
		unitPrice = &p
	}
	o := r.Outcome

	_, err = s.pool.Exec(ctx, `
		INSERT INTO simulation_records (`+simulationColumns+`
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14
		)
	`,
		r.RecordID, r.Payer, r.UnitLimit, unitPrice,
		o.Succeeded, o.UnitsConsumed, o.BaseFee, o.ComputedFee,
		nonNil(o.DiagnosticLines), nonNil(o.Warnings), o.FailureReason, string(o.FailureKind), string(o.Path),
		r.SimulatedAt,
	)
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
	row := s.pool.QueryRow(ctx, `SELECT `+simulationColumns+` FROM simulation_records WHERE record_id = $1`, recordID)

	r, err := scanSimulation(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get simulation record: %w", err)
	}
	return r, nil
}

// ListByPayer retrieves up to limit records for a payer, newest first.
func (s *SimulationStore) ListByPayer(ctx context.Context, payer string, limit int) (records []*domain.SimulationRecord, err error) {
	start := time.Now()
	defer func() { observe("list_simulations", start, err) }()

	query := `SELECT ` + simulationColumns + `
		FROM simulation_records
		WHERE payer = $1
		ORDER BY simulated_at DESC, record_id ASC`
	args := []interface{}{payer}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query simulations by payer: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulation record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanSimulation(row pgx.Row) (*domain.SimulationRecord, error) {
	var r domain.SimulationRecord
	var unitPrice *int64
	var kind, path string

	err := row.Scan(
		&r.RecordID, &r.Payer, &r.UnitLimit, &unitPrice,
		&r.Outcome.Succeeded, &r.Outcome.UnitsConsumed, &r.Outcome.BaseFee, &r.Outcome.ComputedFee,
		&r.Outcome.DiagnosticLines, &r.Outcome.Warnings, &r.Outcome.FailureReason, &kind, &path,
		&r.SimulatedAt,
	)
	if err != nil {
		return nil, err
	}

	if unitPrice != nil {
		p := uint64(*unitPrice)
		r.UnitPrice = &p
	}
	r.Outcome.FailureKind = domain.FailureKind(kind)
	r.Outcome.Path = domain.ProbePath(path)
	r.Outcome.DiagnosticLines = nonNil(r.Outcome.DiagnosticLines)
	r.Outcome.Warnings = nonNil(r.Outcome.Warnings)
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
