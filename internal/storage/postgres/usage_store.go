package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/storage"
)

// UsageStore implements storage.UsageStore using PostgreSQL.
// Per-instruction usage is stored as JSONB since it is best-effort and never queried.
type UsageStore struct {
	pool *Pool
}

// NewUsageStore creates a new UsageStore.
func NewUsageStore(pool *Pool) *UsageStore {
	return &UsageStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UsageStore = (*UsageStore)(nil)

// Insert adds a usage row. Returns ErrDuplicateKey if signature exists.
func (s *UsageStore) Insert(ctx context.Context, u *domain.TransactionUsage) error {
	if u == nil || u.Signature == "" {
		return storage.ErrInvalidInput
	}

	instructions := u.Instructions
	if instructions == nil {
		instructions = []domain.InstructionUsage{}
	}
	raw, err := json.Marshal(instructions)
	if err != nil {
		return fmt.Errorf("marshal instructions: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO transaction_usage (
			signature, payer, slot, block_time, fee,
			total_units, instructions, failed, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		u.Signature, u.Payer, u.Slot, u.BlockTime, int64(u.Fee),
		u.TotalUnits, string(raw), u.Failed, u.ObservedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction usage: %w", err)
	}
	return nil
}

// GetByPayer retrieves up to limit usage rows for a payer, newest slot first.
func (s *UsageStore) GetByPayer(ctx context.Context, payer string, limit int) ([]*domain.TransactionUsage, error) {
	query := `
		SELECT signature, payer, slot, block_time, fee,
		       total_units, instructions, failed, observed_at
		FROM transaction_usage
		WHERE payer = $1
		ORDER BY slot DESC, signature ASC`
	args := []interface{}{payer}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage by payer: %w", err)
	}
	defer rows.Close()

	var result []*domain.TransactionUsage
	for rows.Next() {
		var u domain.TransactionUsage
		var fee int64
		var raw []byte
		err := rows.Scan(
			&u.Signature, &u.Payer, &u.Slot, &u.BlockTime, &fee,
			&u.TotalUnits, &raw, &u.Failed, &u.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction usage: %w", err)
		}
		u.Fee = uint64(fee)
		if err := json.Unmarshal(raw, &u.Instructions); err != nil {
			return nil, fmt.Errorf("decode instructions of %s: %w", u.Signature, err)
		}
		result = append(result, &u)
	}
	return result, rows.Err()
}
