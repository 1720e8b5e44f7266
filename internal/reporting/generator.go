package reporting

import (
	"context"
	"fmt"
	"time"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/feestats"
	"solana-fee-lab/internal/history"
	"solana-fee-lab/internal/orchestrator"
	"solana-fee-lab/internal/storage"
)

// History limits applied when a payer is known.
const (
	RecentSimulationLimit = 10
	UsageLimit            = 50
)

// Generator produces reports from plan results and stored payer history.
type Generator struct {
	simulations storage.SimulationStore // optional
	usage       storage.UsageStore      // optional
	now         func() time.Time        // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. Either store may be nil.
func NewGenerator(simulations storage.SimulationStore, usage storage.UsageStore) *Generator {
	return &Generator{
		simulations: simulations,
		usage:       usage,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report for a plan result. payer selects stored history
// and may be empty.
func (g *Generator) Generate(ctx context.Context, res *orchestrator.PlanResult, payer string) (*Report, error) {
	if res == nil {
		return nil, fmt.Errorf("generate report: %w", storage.ErrInvalidInput)
	}

	r := &Report{
		GeneratedAt:  g.now(),
		Payer:        payer,
		ExportID:     res.ExportID,
		UnitPrice:    res.UnitPrice,
		Degraded:     res.Fees.Degraded,
		SampleCount:  res.Fees.Stats.SampleCount,
		FeeTiers:     feeTiers(res.Fees.Stats, res.Analysis.RecommendedLimit),
		Instructions: len(res.Instructions),
		Analysis:     res.Analysis,
		Plans:        planRows(res.Plans),
		Infeasible:   res.Infeasible,
		Warnings:     res.Warnings,
		Errors:       res.Errors,
	}

	if res.Simulation != nil {
		row := simulationRow("whole batch", *res.Simulation)
		r.Simulation = &row
	}
	for i, out := range res.BatchSimulations {
		r.BatchSimulations = append(r.BatchSimulations, simulationRow(fmt.Sprintf("batch %d", i+1), out))
	}

	if payer == "" {
		return r, nil
	}

	if g.simulations != nil {
		records, err := g.simulations.ListByPayer(ctx, payer, RecentSimulationLimit)
		if err != nil {
			return nil, fmt.Errorf("list simulations: %w", err)
		}
		for _, rec := range records {
			row := simulationRow(fmt.Sprintf("limit %d", rec.UnitLimit), rec.Outcome)
			row.SimulatedAt = rec.SimulatedAt
			r.RecentSimulations = append(r.RecentSimulations, row)
		}
	}

	if g.usage != nil {
		rows, err := g.usage.GetByPayer(ctx, payer, UsageLimit)
		if err != nil {
			return nil, fmt.Errorf("list usage: %w", err)
		}
		if len(rows) > 0 {
			usage := make([]domain.TransactionUsage, len(rows))
			for i, u := range rows {
				usage[i] = *u
			}
			s := history.Summarize(usage)
			r.Usage = &s
		}
	}

	return r, nil
}

// feeTiers prices every speed tier at units compute units.
func feeTiers(stats domain.FeeStatistics, units int64) []FeeTierRow {
	rows := make([]FeeTierRow, 0, len(domain.SpeedTiers))
	for _, tier := range domain.SpeedTiers {
		price := feestats.RecommendForSpeed(stats, tier)
		rows = append(rows, FeeTierRow{
			Tier:      tier,
			UnitPrice: price,
			Band:      feestats.EstimateConfirmationBand(float64(price), stats),
			TotalCost: feestats.TotalCost(units, price, feestats.DefaultBaseFee),
		})
	}
	return rows
}

func planRows(plans []domain.BatchPlan) []PlanRow {
	rows := make([]PlanRow, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, PlanRow{
			Strategy:         p.StrategyKind,
			Batches:          len(p.Groups),
			EstimatedUnits:   p.TotalEstimatedUnits,
			EstimatedSavings: p.EstimatedSavings,
			Description:      p.Description,
		})
	}
	return rows
}

func simulationRow(label string, out domain.SimulationOutcome) SimulationRow {
	row := SimulationRow{
		Label:         label,
		Succeeded:     out.Succeeded,
		Path:          out.Path,
		Fee:           out.BaseFee,
		FailureKind:   out.FailureKind,
		FailureReason: out.FailureReason,
	}
	if out.UnitsConsumed != nil {
		row.UnitsConsumed = *out.UnitsConsumed
	}
	if out.ComputedFee != nil {
		row.Fee = *out.ComputedFee
	}
	return row
}
