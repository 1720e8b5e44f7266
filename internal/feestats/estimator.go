package feestats

import (
	"context"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/observability"
	"solana-fee-lab/internal/storage"
)

// FeeSource fetches recent prioritization fees, optionally filtered to
// transactions that lock the given accounts.
type FeeSource interface {
	GetRecentPrioritizationFees(ctx context.Context, accounts []string) ([]domain.FeeSample, error)
}

// EstimatorOptions configures an Estimator.
type EstimatorOptions struct {
	Source    FeeSource
	Store     storage.FeeSampleStore // optional
	TTL       time.Duration          // cache lifetime; defaults to StaleAfter
	CacheSize int                    // distinct account filters cached; defaults to 128
	Now       func() time.Time
	Logger    *log.Logger
}

// Estimator serves fee estimates per account filter, caching them until stale.
type Estimator struct {
	source FeeSource
	store  storage.FeeSampleStore
	cache  *expirable.LRU[string, domain.FeeEstimate]
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger
}

// NewEstimator creates an Estimator.
func NewEstimator(opts EstimatorOptions) *Estimator {
	if opts.TTL <= 0 {
		opts.TTL = StaleAfter
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Estimator{
		source: opts.Source,
		store:  opts.Store,
		cache:  expirable.NewLRU[string, domain.FeeEstimate](opts.CacheSize, nil, opts.TTL),
		ttl:    opts.TTL,
		now:    opts.Now,
		logger: opts.Logger,
	}
}

// FilterKey normalizes an account filter into a cache and storage key.
func FilterKey(accounts []string) string {
	if len(accounts) == 0 {
		return ""
	}
	sorted := make([]string, len(accounts))
	copy(sorted, accounts)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Estimate returns a cached estimate when fresh, otherwise refreshes it.
// Never fails: fetch errors yield FallbackStatistics with Degraded set.
func (e *Estimator) Estimate(ctx context.Context, accounts []string) domain.FeeEstimate {
	key := FilterKey(accounts)
	if est, ok := e.cache.Get(key); ok && e.now().Sub(time.UnixMilli(est.FetchedAt)) <= e.ttl {
		observability.RecordFeeCacheHit()
		return est
	}
	est, _ := e.Refresh(ctx, accounts)
	return est
}

// Refresh bypasses the cache. The returned estimate is always usable; the
// error reports whether it is a fallback.
func (e *Estimator) Refresh(ctx context.Context, accounts []string) (domain.FeeEstimate, error) {
	key := FilterKey(accounts)
	fetchedAt := e.now().UnixMilli()

	samples, err := e.source.GetRecentPrioritizationFees(ctx, accounts)
	if err != nil {
		observability.RecordFeeFetch(true)
		e.logger.Printf("fee fetch failed, serving fallback: %v", err)
		est := domain.FeeEstimate{
			Stats:     FallbackStatistics(),
			Samples:   []domain.FeeSample{},
			FetchedAt: fetchedAt,
			Degraded:  true,
		}
		// Degraded estimates are not cached so the next call retries.
		return est, err
	}
	observability.RecordFeeFetch(false)

	est := domain.FeeEstimate{
		Stats:     ComputeStatistics(samples),
		Samples:   samples,
		FetchedAt: fetchedAt,
	}
	e.cache.Add(key, est)
	e.persist(ctx, key, samples, fetchedAt)
	return est, nil
}

func (e *Estimator) persist(ctx context.Context, key string, samples []domain.FeeSample, fetchedAt int64) {
	if e.store == nil || len(samples) == 0 {
		return
	}

	seen := make(map[int64]bool, len(samples))
	rows := make([]*domain.StoredFeeSample, 0, len(samples))
	for _, s := range samples {
		if seen[s.ObservedAtSlot] {
			continue
		}
		seen[s.ObservedAtSlot] = true
		rows = append(rows, &domain.StoredFeeSample{
			FilterKey:      key,
			ObservedAtSlot: s.ObservedAtSlot,
			Fee:            s.Fee,
			FetchedAt:      fetchedAt,
		})
	}

	if err := e.store.InsertBulk(ctx, rows); err != nil {
		e.logger.Printf("persist fee samples: %v", err)
		return
	}
	observability.RecordFeeSamplesPersisted(len(rows))
}

// Purge drops all cached estimates.
func (e *Estimator) Purge() {
	e.cache.Purge()
}
