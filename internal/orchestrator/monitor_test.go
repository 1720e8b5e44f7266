package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/feestats"
	"solana-fee-lab/internal/solana/stub"
	"solana-fee-lab/internal/storage/memory"
)

func TestFeeMonitor_RefreshOncePersistsAndRecommends(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Fees = []domain.FeeSample{{ObservedAtSlot: 10, Fee: 1000}, {ObservedAtSlot: 11, Fee: 3000}}
	store := memory.NewFeeSampleStore()
	est := feestats.NewEstimator(feestats.EstimatorOptions{Source: rpc, Store: store})

	m := NewFeeMonitor(MonitorOptions{Estimator: est, Filters: [][]string{nil, {"acct"}}})
	m.RefreshOnce(context.Background())

	st := m.Status()
	if st.Refreshes != 2 || st.Failures != 0 {
		t.Errorf("expected 2 refreshes, got %+v", st)
	}
	if st.Recommended[domain.SpeedTurbo] == 0 {
		t.Error("expected turbo recommendation for the global filter")
	}
	if _, ok := st.Latest["acct"]; !ok {
		t.Error("expected estimate for acct filter")
	}

	rows, _ := store.GetBySlotRange(context.Background(), "", 0, 100)
	if len(rows) != 2 {
		t.Errorf("expected 2 persisted samples, got %d", len(rows))
	}
}

func TestFeeMonitor_RecordsFailures(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.FailWith("getRecentPrioritizationFees", errors.New("boom"))
	m := NewFeeMonitor(MonitorOptions{Estimator: feestats.NewEstimator(feestats.EstimatorOptions{Source: rpc})})

	m.RefreshOnce(context.Background())

	st := m.Status()
	if st.Failures != 1 || st.LastError == "" {
		t.Errorf("expected recorded failure, got %+v", st)
	}
	if st.LastRefresh != 0 {
		t.Error("failed refresh must not advance LastRefresh")
	}
}

func TestFeeMonitor_RunStopsOnCancel(t *testing.T) {
	rpc := stub.NewRPCClient()
	m := NewFeeMonitor(MonitorOptions{
		Estimator: feestats.NewEstimator(feestats.EstimatorOptions{Source: rpc}),
		Interval:  5 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Status().Refreshes < 2 {
		t.Errorf("expected several refreshes, got %d", m.Status().Refreshes)
	}
}
