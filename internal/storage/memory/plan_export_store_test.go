package memory

import (
	"context"
	"errors"
	"testing"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/storage"
)

func TestPlanExportStore_InsertGetList(t *testing.T) {
	store := NewPlanExportStore()
	ctx := context.Background()

	for i, at := range []int64{10, 30, 20} {
		e := &domain.PlanExport{
			ExportID:   string(rune('a' + i)),
			Payer:      "payer1",
			PlanCount:  3,
			Payload:    []byte(`{"optimizations":[]}`),
			ExportedAt: at,
		}
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByID(ctx, "b")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if string(got.Payload) != `{"optimizations":[]}` {
		t.Errorf("Payload mismatch: %s", got.Payload)
	}

	recent, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].ExportID != "b" || recent[1].ExportID != "c" {
		t.Errorf("Unexpected order: %+v", recent)
	}

	if err := store.Insert(ctx, &domain.PlanExport{ExportID: "a"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
