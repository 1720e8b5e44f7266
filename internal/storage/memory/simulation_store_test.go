package memory

import (
	"context"
	"errors"
	"testing"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/storage"
)

func newRecord(id, payer string, at int64) *domain.SimulationRecord {
	units := int64(150)
	price := uint64(1000)
	return &domain.SimulationRecord{
		RecordID:    id,
		Payer:       payer,
		UnitLimit:   200_000,
		UnitPrice:   &price,
		SimulatedAt: at,
		Outcome: domain.SimulationOutcome{
			Succeeded:       true,
			UnitsConsumed:   &units,
			BaseFee:         5000,
			DiagnosticLines: []string{"Program log: ok"},
			Warnings:        []string{},
			Path:            domain.ProbePathPrimary,
		},
	}
}

func TestSimulationStore_InsertAndGet(t *testing.T) {
	store := NewSimulationStore()
	ctx := context.Background()

	r := newRecord("rec1", "payer1", 1704067200000)
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "rec1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Payer != "payer1" {
		t.Errorf("Payer mismatch: got %s, want payer1", got.Payer)
	}
	if *got.Outcome.UnitsConsumed != 150 {
		t.Errorf("UnitsConsumed mismatch: got %d", *got.Outcome.UnitsConsumed)
	}

	// Mutating the returned copy must not affect the store
	got.Outcome.DiagnosticLines[0] = "mutated"
	*got.UnitPrice = 1
	again, _ := store.GetByID(ctx, "rec1")
	if again.Outcome.DiagnosticLines[0] != "Program log: ok" || *again.UnitPrice != 1000 {
		t.Error("store returned shared state")
	}
}

func TestSimulationStore_Errors(t *testing.T) {
	store := NewSimulationStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	r := newRecord("rec1", "payer1", 1)
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, r); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSimulationStore_ListByPayer(t *testing.T) {
	store := NewSimulationStore()
	ctx := context.Background()

	for i, at := range []int64{100, 300, 200} {
		_ = store.Insert(ctx, newRecord(string(rune('a'+i)), "payer1", at))
	}
	_ = store.Insert(ctx, newRecord("z", "payer2", 500))

	got, err := store.ListByPayer(ctx, "payer1", 2)
	if err != nil {
		t.Fatalf("ListByPayer failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(got))
	}
	if got[0].SimulatedAt != 300 || got[1].SimulatedAt != 200 {
		t.Errorf("Expected newest first, got %d, %d", got[0].SimulatedAt, got[1].SimulatedAt)
	}

	all, _ := store.ListByPayer(ctx, "payer1", 0)
	if len(all) != 3 {
		t.Errorf("Expected 3 records without limit, got %d", len(all))
	}
}
