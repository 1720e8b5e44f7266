// Package history reads the compute usage of a payer's landed transactions
// and keeps a persisted, resumable record of it.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/observability"
	"solana-fee-lab/internal/solana"
	"solana-fee-lab/internal/storage"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
	defaultPageLimit  = 100
)

// Source is the subset of the RPC client used to read history.
type Source interface {
	GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// Options configures a Reader.
type Options struct {
	Source     Source
	Usage      storage.UsageStore        // required by Sync and Watcher
	Progress   storage.SyncProgressStore // optional; without it Sync re-reads one page
	MaxRetries int                       // GetTransaction attempts; defaults to 3
	RetryDelay time.Duration             // first backoff delay; doubles per attempt
	Now        func() time.Time
	Logger     *log.Logger
}

// Reader fetches and persists transaction usage.
type Reader struct {
	source     Source
	usage      storage.UsageStore
	progress   storage.SyncProgressStore
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
	logger     *log.Logger
}

// NewReader creates a Reader.
func NewReader(opts Options) *Reader {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Reader{
		source:     opts.Source,
		usage:      opts.Usage,
		progress:   opts.Progress,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		now:        opts.Now,
		logger:     opts.Logger,
	}
}

// FromTransaction converts a landed transaction into a usage row.
// meta.computeUnitsConsumed is authoritative; without it the top-level
// consumed lines are summed.
func FromTransaction(payer string, tx *solana.Transaction, observedAt int64) domain.TransactionUsage {
	u := domain.TransactionUsage{
		Signature:    tx.Signature,
		Payer:        payer,
		Slot:         tx.Slot,
		BlockTime:    tx.BlockTime,
		Instructions: []domain.InstructionUsage{},
		ObservedAt:   observedAt,
	}
	if tx.Meta == nil {
		return u
	}

	u.Fee = tx.Meta.Fee
	u.Failed = tx.Meta.Err != nil
	if parsed := solana.ParseInstructionUsage(tx.Meta.LogMessages); parsed != nil {
		u.Instructions = parsed
	}
	if tx.Meta.ComputeUnitsConsumed != nil {
		u.TotalUnits = *tx.Meta.ComputeUnitsConsumed
	} else {
		u.TotalUnits = solana.SumInstructionUnits(u.Instructions)
	}
	return u
}

// FromNotification builds a usage row from subscription logs alone, for
// transactions the node cannot serve yet. Fee is unknown and left zero.
func FromNotification(payer string, n solana.LogNotification, observedAt int64) domain.TransactionUsage {
	instrs := solana.ParseInstructionUsage(n.Logs)
	if instrs == nil {
		instrs = []domain.InstructionUsage{}
	}
	return domain.TransactionUsage{
		Signature:    n.Signature,
		Payer:        payer,
		Slot:         n.Slot,
		TotalUnits:   solana.SumInstructionUnits(instrs),
		Instructions: instrs,
		Failed:       n.Err != nil,
		ObservedAt:   observedAt,
	}
}

// RecentUsage returns usage for up to limit of the payer's newest
// transactions, newest first. Transactions the node no longer serves are skipped.
func (r *Reader) RecentUsage(ctx context.Context, payer string, limit int) ([]domain.TransactionUsage, error) {
	if err := solana.ValidateAddress(payer); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}

	sigs, err := r.source.GetSignaturesForAddress(ctx, payer, &solana.SignaturesOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("get signatures for %s: %w", payer, err)
	}

	out := make([]domain.TransactionUsage, 0, len(sigs))
	for _, sig := range sigs {
		tx, err := r.fetch(ctx, sig.Signature)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Printf("skip %s: %v", sig.Signature, err)
			continue
		}
		if tx == nil {
			continue
		}
		out = append(out, FromTransaction(payer, tx, r.now().UnixMilli()))
	}
	return out, nil
}

// Sync ingests the payer's transactions newer than the last synced one,
// oldest first, and advances the progress marker. Returns rows inserted.
func (r *Reader) Sync(ctx context.Context, payer string, limit int) (int, error) {
	if r.usage == nil {
		return 0, errors.New("history: sync requires a usage store")
	}
	if err := solana.ValidateAddress(payer); err != nil {
		return 0, err
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}

	opts := &solana.SignaturesOpts{Limit: limit}
	if r.progress != nil {
		last, err := r.progress.GetLastSynced(ctx, payer)
		switch {
		case err == nil:
			opts.Until = last.Signature
		case !errors.Is(err, storage.ErrNotFound):
			return 0, fmt.Errorf("load sync progress: %w", err)
		}
	}

	sigs, err := r.source.GetSignaturesForAddress(ctx, payer, opts)
	if err != nil {
		return 0, fmt.Errorf("get signatures for %s: %w", payer, err)
	}

	inserted := 0
	for i := len(sigs) - 1; i >= 0; i-- {
		sig := sigs[i]
		tx, err := r.fetch(ctx, sig.Signature)
		if err != nil {
			return inserted, fmt.Errorf("get transaction %s: %w", sig.Signature, err)
		}
		if tx == nil {
			r.logger.Printf("transaction %s not available, skipping", sig.Signature)
		} else {
			ok, err := r.store(ctx, FromTransaction(payer, tx, r.now().UnixMilli()))
			if err != nil {
				return inserted, err
			}
			if ok {
				inserted++
			}
		}
		if err := r.advance(ctx, payer, sig.Slot, sig.Signature); err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

// store inserts a row, treating an existing signature as already ingested.
func (r *Reader) store(ctx context.Context, u domain.TransactionUsage) (bool, error) {
	err := r.usage.Insert(ctx, &u)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert usage %s: %w", u.Signature, err)
	}
	observability.RecordUsageIngested()
	return true, nil
}

func (r *Reader) advance(ctx context.Context, payer string, slot int64, signature string) error {
	if r.progress == nil {
		return nil
	}
	if err := r.progress.SetLastSynced(ctx, &storage.SyncProgress{Payer: payer, Slot: slot, Signature: signature}); err != nil {
		return fmt.Errorf("save sync progress: %w", err)
	}
	return nil
}

// fetch gets a transaction with exponential backoff. A missing transaction
// is retried too: notifications can arrive before the node serves it.
func (r *Reader) fetch(ctx context.Context, signature string) (*solana.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		tx, err := r.source.GetTransaction(ctx, signature)
		if err == nil && tx != nil {
			return tx, nil
		}
		lastErr = err
		if solana.IsRPCError(err) {
			return nil, err
		}
		if attempt == r.maxRetries-1 {
			break
		}

		delay := r.retryDelay * time.Duration(1<<attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
