package reporting

import (
	"time"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/history"
)

// Report is a rendered-ready view of one planning run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Payer       string
	ExportID    string

	// Fees
	UnitPrice   uint64
	Degraded    bool
	SampleCount int
	FeeTiers    []FeeTierRow

	// Batch
	Instructions int
	Analysis     domain.BatchAnalysis
	Plans        []PlanRow // sorted by estimated savings, descending
	Infeasible   []string

	// Simulation (only with a payer)
	Simulation       *SimulationRow
	BatchSimulations []SimulationRow

	// Payer history (only with a payer and stores)
	RecentSimulations []SimulationRow
	Usage             *history.Summary

	Warnings []string
	Errors   []string
}

// FeeTierRow is one speed tier of the fee table.
type FeeTierRow struct {
	Tier      domain.SpeedTier
	UnitPrice uint64 // micro-lamports per compute unit
	Band      string
	TotalCost int64 // lamports at the recommended limit
}

// PlanRow summarizes one batch plan.
type PlanRow struct {
	Strategy         domain.StrategyKind
	Batches          int
	EstimatedUnits   int64
	EstimatedSavings int64 // lamports
	Description      string
}

// SimulationRow summarizes one simulation outcome.
type SimulationRow struct {
	Label         string
	Succeeded     bool
	Path          domain.ProbePath
	UnitsConsumed int64 // 0 when unknown
	Fee           int64 // lamports; computed fee when present, else base fee
	FailureKind   domain.FailureKind
	FailureReason string
	SimulatedAt   int64 // Unix ms, 0 for live outcomes
}
