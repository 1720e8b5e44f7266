package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/observability"
	"solana-fee-lab/internal/storage"
)

// FeeSampleStore implements storage.FeeSampleStore using ClickHouse.
type FeeSampleStore struct {
	conn *Conn
}

// NewFeeSampleStore creates a new FeeSampleStore.
func NewFeeSampleStore(conn *Conn) *FeeSampleStore {
	return &FeeSampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeeSampleStore = (*FeeSampleStore)(nil)

// InsertBulk adds multiple samples. Fails entire batch on duplicate
// (filter_key, observed_at_slot, fetched_at).
func (s *FeeSampleStore) InsertBulk(ctx context.Context, samples []*domain.StoredFeeSample) (err error) {
	if len(samples) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_fee_samples", time.Since(start).Seconds(), err)
	}()

	type key struct {
		filterKey string
		slot      int64
		fetchedAt int64
	}
	seen := make(map[key]struct{}, len(samples))
	for _, fs := range samples {
		if fs == nil || fs.ObservedAtSlot < 0 || fs.FetchedAt < 0 {
			return storage.ErrInvalidInput
		}
		k := key{fs.FilterKey, fs.ObservedAtSlot, fs.FetchedAt}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce keys. All samples of one refresh share a
	// fetched_at, so one lookup per distinct (filter_key, fetched_at) suffices.
	checked := make(map[key]struct{})
	for _, fs := range samples {
		k := key{filterKey: fs.FilterKey, fetchedAt: fs.FetchedAt}
		if _, done := checked[k]; done {
			continue
		}
		checked[k] = struct{}{}

		existing, err := s.slotsAt(ctx, fs.FilterKey, fs.FetchedAt)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, other := range samples {
			if other.FilterKey == fs.FilterKey && other.FetchedAt == fs.FetchedAt {
				if _, dup := existing[other.ObservedAtSlot]; dup {
					return storage.ErrDuplicateKey
				}
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO fee_samples (filter_key, observed_at_slot, fee, fetched_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, fs := range samples {
		if err := batch.Append(fs.FilterKey, uint64(fs.ObservedAtSlot), fs.Fee, uint64(fs.FetchedAt)); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySlotRange retrieves samples for a filter key within [from, to] (inclusive),
// ordered by slot ASC.
func (s *FeeSampleStore) GetBySlotRange(ctx context.Context, filterKey string, from, to int64) ([]*domain.StoredFeeSample, error) {
	if from < 0 {
		from = 0
	}
	if to < from {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT filter_key, observed_at_slot, fee, fetched_at
		FROM fee_samples
		WHERE filter_key = ? AND observed_at_slot >= ? AND observed_at_slot <= ?
		ORDER BY observed_at_slot ASC, fetched_at ASC
	`, filterKey, uint64(from), uint64(to))
	if err != nil {
		return nil, fmt.Errorf("query by slot range: %w", err)
	}
	defer rows.Close()

	return scanFeeSamples(rows)
}

// slotsAt returns the slots already stored for one refresh.
func (s *FeeSampleStore) slotsAt(ctx context.Context, filterKey string, fetchedAt int64) (map[int64]struct{}, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT observed_at_slot FROM fee_samples
		WHERE filter_key = ? AND fetched_at = ?
	`, filterKey, uint64(fetchedAt))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make(map[int64]struct{})
	for rows.Next() {
		var slot uint64
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		slots[int64(slot)] = struct{}{}
	}
	return slots, rows.Err()
}

// scanFeeSamples scans multiple rows.
func scanFeeSamples(rows chRows) ([]*domain.StoredFeeSample, error) {
	var samples []*domain.StoredFeeSample

	for rows.Next() {
		var fs domain.StoredFeeSample
		var slot, fetchedAt uint64

		if err := rows.Scan(&fs.FilterKey, &slot, &fs.Fee, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan fee sample row: %w", err)
		}

		fs.ObservedAtSlot = int64(slot)
		fs.FetchedAt = int64(fetchedAt)
		samples = append(samples, &fs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fee sample rows: %w", err)
	}

	return samples, nil
}
