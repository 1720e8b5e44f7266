package verification

import (
	"context"
	"errors"
	"testing"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/idhash"
	"solana-fee-lab/internal/storage/memory"
)

func newExport(payer string, payload string, plans int, at int64) *domain.PlanExport {
	return &domain.PlanExport{
		ExportID:   idhash.ComputeExportID(payer, []byte(payload)),
		Payer:      payer,
		PlanCount:  plans,
		Payload:    []byte(payload),
		ExportedAt: at,
	}
}

const validPayload = `{"timestamp":"2024-01-01T00:00:00Z","optimizations":[{"strategy":"single"},{"strategy":"split"}]}`

func TestCompareExport_Match(t *testing.T) {
	if d := CompareExport(newExport("p", validPayload, 2, 1)); len(d) != 0 {
		t.Errorf("expected no divergences, got %+v", d)
	}
}

func TestCompareExport_Divergences(t *testing.T) {
	tampered := newExport("p", validPayload, 2, 1)
	tampered.Payload = []byte(`{"timestamp":"2024-01-01T00:00:00Z","optimizations":[{"strategy":"single"}]}`)

	d := CompareExport(tampered)
	fields := map[string]bool{}
	for _, div := range d {
		fields[div.Field] = true
	}
	if !fields["ExportID"] || !fields["PlanCount"] {
		t.Errorf("expected ExportID and PlanCount divergences, got %+v", d)
	}

	broken := newExport("p", `not json`, 0, 1)
	d = CompareExport(broken)
	if len(d) != 1 || d[0].Field != "Payload" {
		t.Errorf("expected Payload divergence, got %+v", d)
	}
}

func TestVerifyExport(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPlanExportStore()
	good := newExport("p", validPayload, 2, 1)
	if err := store.Insert(ctx, good); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	v := NewVerifier(Options{Exports: store})
	res, err := v.VerifyExport(ctx, good.ExportID)
	if err != nil {
		t.Fatalf("VerifyExport failed: %v", err)
	}
	if !res.Match {
		t.Errorf("expected match, got %+v", res.Divergences)
	}

	if _, err := v.VerifyExport(ctx, "missing"); !errors.Is(err, ErrExportNotFound) {
		t.Errorf("expected ErrExportNotFound, got %v", err)
	}
	if _, err := v.VerifySimulation(ctx, "x"); err == nil {
		t.Error("expected error without simulation store")
	}
}

func TestVerifyRecentExports(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPlanExportStore()

	good := newExport("p", validPayload, 2, 1)
	bad := newExport("p", validPayload, 5, 2) // wrong plan count
	bad.ExportID = "forged"
	for _, e := range []*domain.PlanExport{good, bad} {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	report, err := NewVerifier(Options{Exports: store}).VerifyRecentExports(ctx, 10)
	if err != nil {
		t.Fatalf("VerifyRecentExports failed: %v", err)
	}
	if report.Total != 2 || report.Matched != 1 || report.Divergent != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Results[0].ID != "forged" || len(report.Results[0].Divergences) != 2 {
		t.Errorf("expected newest (forged) first with 2 divergences, got %+v", report.Results[0])
	}
}

func TestVerifySimulation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSimulationStore()
	price := uint64(1000)
	units, fee := int64(1500), int64(5200)

	rec := &domain.SimulationRecord{
		Payer:       "p",
		UnitLimit:   200_000,
		UnitPrice:   &price,
		SimulatedAt: 42,
		Outcome: domain.SimulationOutcome{
			Succeeded:     true,
			UnitsConsumed: &units,
			BaseFee:       5000,
			ComputedFee:   &fee,
			Path:          domain.ProbePathPrimary,
		},
	}
	rec.RecordID = idhash.ComputeSimulationID(rec.Payer, rec.UnitLimit, rec.UnitPrice, rec.SimulatedAt)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	v := NewVerifier(Options{Simulations: store})
	res, err := v.VerifySimulation(ctx, rec.RecordID)
	if err != nil {
		t.Fatalf("VerifySimulation failed: %v", err)
	}
	if !res.Match {
		t.Errorf("expected match, got %+v", res.Divergences)
	}

	if _, err := v.VerifySimulation(ctx, "missing"); !errors.Is(err, ErrSimulationNotFound) {
		t.Errorf("expected ErrSimulationNotFound, got %v", err)
	}

	failed := *rec
	failed.Outcome = domain.SimulationOutcome{Succeeded: false, BaseFee: 5000}
	if d := CompareSimulation(&failed); len(d) != 1 || d[0].Field != "FailureKind" {
		t.Errorf("expected FailureKind divergence, got %+v", d)
	}
}
