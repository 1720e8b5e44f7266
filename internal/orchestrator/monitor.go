package orchestrator

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/feestats"
	"solana-fee-lab/internal/observability"
)

// DefaultMonitorInterval is how often the fee monitor refreshes.
const DefaultMonitorInterval = 30 * time.Second

// Refresher forces a fee refresh. *feestats.Estimator implements it.
type Refresher interface {
	Refresh(ctx context.Context, accounts []string) (domain.FeeEstimate, error)
}

// MonitorOptions configures a FeeMonitor.
type MonitorOptions struct {
	Estimator Refresher
	Filters   [][]string // account filters to keep warm; nil means global fees only
	Interval  time.Duration
	Logger    *log.Logger
}

// MonitorStatus is a snapshot of the monitor for status endpoints.
type MonitorStatus struct {
	LastRefresh int64                         `json:"lastRefresh"` // Unix ms of the last successful refresh
	Refreshes   int                           `json:"refreshes"`
	Failures    int                           `json:"failures"`
	LastError   string                        `json:"lastError,omitempty"`
	Recommended map[domain.SpeedTier]uint64   `json:"recommended"` // global filter
	Latest      map[string]domain.FeeEstimate `json:"-"`
}

// FeeMonitor periodically refreshes fee estimates, which persists samples
// and updates the recommendation gauges.
type FeeMonitor struct {
	estimator Refresher
	filters   [][]string
	interval  time.Duration
	logger    *log.Logger

	mu     sync.RWMutex
	status MonitorStatus
}

// NewFeeMonitor creates a FeeMonitor.
func NewFeeMonitor(opts MonitorOptions) *FeeMonitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultMonitorInterval
	}
	if len(opts.Filters) == 0 {
		opts.Filters = [][]string{nil}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &FeeMonitor{
		estimator: opts.Estimator,
		filters:   opts.Filters,
		interval:  opts.Interval,
		logger:    opts.Logger,
		status: MonitorStatus{
			Recommended: make(map[domain.SpeedTier]uint64),
			Latest:      make(map[string]domain.FeeEstimate),
		},
	}
}

// Run refreshes immediately and then every interval until ctx is done.
func (m *FeeMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.RefreshOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce refreshes every filter once.
func (m *FeeMonitor) RefreshOnce(ctx context.Context) {
	for _, filter := range m.filters {
		if ctx.Err() != nil {
			return
		}
		est, err := m.estimator.Refresh(ctx, filter)
		m.record(filter, est, err)
	}
}

func (m *FeeMonitor) record(filter []string, est domain.FeeEstimate, err error) {
	key := feestats.FilterKey(filter)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.status.Failures++
		m.status.LastError = err.Error()
		m.logger.Printf("refresh %q failed: %v", key, err)
		return
	}

	m.status.Refreshes++
	m.status.LastRefresh = est.FetchedAt
	m.status.Latest[key] = est
	observability.MarkFeeRefresh(est.FetchedAt / 1000)

	if key == "" {
		for _, tier := range domain.SpeedTiers {
			v := feestats.RecommendForSpeed(est.Stats, tier)
			m.status.Recommended[tier] = v
			observability.SetFeeRecommendation(string(tier), v)
		}
	}
}

// Status returns a copy of the current status.
func (m *FeeMonitor) Status() MonitorStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.status
	s.Recommended = make(map[domain.SpeedTier]uint64, len(m.status.Recommended))
	for k, v := range m.status.Recommended {
		s.Recommended[k] = v
	}
	s.Latest = make(map[string]domain.FeeEstimate, len(m.status.Latest))
	for k, v := range m.status.Latest {
		s.Latest[k] = v
	}
	return s
}
