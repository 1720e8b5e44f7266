// Package verification checks that persisted plan exports and simulation
// records still match the deterministic ids they are stored under.
package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/idhash"
	"solana-fee-lab/internal/storage"
)

var (
	// ErrExportNotFound is returned when export ID doesn't exist.
	ErrExportNotFound = errors.New("export not found")

	// ErrSimulationNotFound is returned when record ID doesn't exist.
	ErrSimulationNotFound = errors.New("simulation record not found")
)

// FieldDivergence represents a mismatch between stored and recomputed values.
type FieldDivergence struct {
	Field    string      `json:"field"`
	Expected interface{} `json:"expected"` // stored value
	Actual   interface{} `json:"actual"`   // recomputed value
}

// VerificationResult contains the result of verifying one stored item.
type VerificationResult struct {
	ID          string            `json:"id"`
	Match       bool              `json:"match"`
	Divergences []FieldDivergence `json:"divergences,omitempty"`
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	Total     int                  `json:"total"`
	Matched   int                  `json:"matched"`
	Divergent int                  `json:"divergent"`
	Results   []VerificationResult `json:"results"`
}

// Options contains configuration for creating a Verifier.
type Options struct {
	Exports     storage.PlanExportStore
	Simulations storage.SimulationStore
}

// Verifier recomputes ids and payload invariants of stored items.
type Verifier struct {
	exports     storage.PlanExportStore
	simulations storage.SimulationStore
}

// NewVerifier creates a new Verifier. Either store may be nil, which makes
// the matching Verify call fail.
func NewVerifier(opts Options) *Verifier {
	return &Verifier{exports: opts.Exports, simulations: opts.Simulations}
}

// exportDoc is the part of the export payload that is checked.
type exportDoc struct {
	Timestamp     string            `json:"timestamp"`
	Optimizations []json.RawMessage `json:"optimizations"`
}

// VerifyExport checks a stored plan export: the id must hash from payer and
// payload, and the payload must hold PlanCount optimizations.
func (v *Verifier) VerifyExport(ctx context.Context, exportID string) (*VerificationResult, error) {
	if v.exports == nil {
		return nil, fmt.Errorf("verify export: %w", storage.ErrInvalidInput)
	}
	stored, err := v.exports.GetByID(ctx, exportID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrExportNotFound
		}
		return nil, err
	}

	divergences := CompareExport(stored)
	return &VerificationResult{
		ID:          exportID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}, nil
}

// CompareExport returns the divergences of one export.
func CompareExport(e *domain.PlanExport) []FieldDivergence {
	var divergences []FieldDivergence

	if id := idhash.ComputeExportID(e.Payer, e.Payload); id != e.ExportID {
		divergences = append(divergences, FieldDivergence{Field: "ExportID", Expected: e.ExportID, Actual: id})
	}

	var doc exportDoc
	if err := json.Unmarshal(e.Payload, &doc); err != nil {
		return append(divergences, FieldDivergence{Field: "Payload", Expected: "valid JSON", Actual: err.Error()})
	}
	if doc.Timestamp == "" {
		divergences = append(divergences, FieldDivergence{Field: "Timestamp", Expected: "non-empty", Actual: ""})
	}
	if len(doc.Optimizations) != e.PlanCount {
		divergences = append(divergences, FieldDivergence{Field: "PlanCount", Expected: e.PlanCount, Actual: len(doc.Optimizations)})
	}
	return divergences
}

// VerifySimulation checks a stored simulation record: the id must hash from
// its budget and time, and the outcome must be internally consistent.
func (v *Verifier) VerifySimulation(ctx context.Context, recordID string) (*VerificationResult, error) {
	if v.simulations == nil {
		return nil, fmt.Errorf("verify simulation: %w", storage.ErrInvalidInput)
	}
	stored, err := v.simulations.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSimulationNotFound
		}
		return nil, err
	}

	divergences := CompareSimulation(stored)
	return &VerificationResult{
		ID:          recordID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}, nil
}

// CompareSimulation returns the divergences of one simulation record.
func CompareSimulation(r *domain.SimulationRecord) []FieldDivergence {
	var divergences []FieldDivergence

	if id := idhash.ComputeSimulationID(r.Payer, r.UnitLimit, r.UnitPrice, r.SimulatedAt); id != r.RecordID {
		divergences = append(divergences, FieldDivergence{Field: "RecordID", Expected: r.RecordID, Actual: id})
	}

	out := r.Outcome
	if out.Succeeded && out.FailureKind != "" {
		divergences = append(divergences, FieldDivergence{Field: "FailureKind", Expected: "", Actual: out.FailureKind})
	}
	if !out.Succeeded && out.FailureKind == "" {
		divergences = append(divergences, FieldDivergence{Field: "FailureKind", Expected: "non-empty", Actual: ""})
	}
	if out.ComputedFee != nil && *out.ComputedFee < out.BaseFee {
		divergences = append(divergences, FieldDivergence{Field: "ComputedFee", Expected: fmt.Sprintf(">= %d", out.BaseFee), Actual: *out.ComputedFee})
	}
	return divergences
}

// VerifyRecentExports verifies up to limit of the newest exports.
func (v *Verifier) VerifyRecentExports(ctx context.Context, limit int) (*VerificationReport, error) {
	if v.exports == nil {
		return nil, fmt.Errorf("verify exports: %w", storage.ErrInvalidInput)
	}
	exports, err := v.exports.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		Total:   len(exports),
		Results: make([]VerificationResult, 0, len(exports)),
	}
	for _, e := range exports {
		divergences := CompareExport(e)
		result := VerificationResult{ID: e.ExportID, Match: len(divergences) == 0, Divergences: divergences}
		report.Results = append(report.Results, result)
		if result.Match {
			report.Matched++
		} else {
			report.Divergent++
		}
	}
	return report, nil
}
