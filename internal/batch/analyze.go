package batch

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"solana-fee-lab/internal/domain"
)

// BaseOverhead is the fixed per-transaction unit cost (signature checks etc.).
const BaseOverhead int64 = 200

// Analyze checks whether all instructions fit one transaction and derives a
// recommended compute unit limit.
func (o *Optimizer) Analyze(instrs []domain.InstructionDescriptor) domain.BatchAnalysis {
	estimated := sumUnits(instrs)
	recommended := o.Buffered(estimated + BaseOverhead)

	a := domain.BatchAnalysis{
		EstimatedUnits:   estimated,
		Overhead:         BaseOverhead,
		RecommendedLimit: recommended,
		CanBatch:         recommended <= o.cfg.MaxUnits,
		Warnings:         []string{},
		Recommendations:  []string{},
	}

	switch {
	case !a.CanBatch:
		a.Warnings = append(a.Warnings, fmt.Sprintf("Total compute units (%s) exceeds maximum (%s)",
			humanize.Comma(recommended), humanize.Comma(o.cfg.MaxUnits)))
		a.Recommendations = append(a.Recommendations, "Consider splitting into multiple transactions")
	case recommended*10 > o.cfg.MaxUnits*8:
		a.Warnings = append(a.Warnings, "High compute usage - consider optimization")
		a.Recommendations = append(a.Recommendations, "Monitor actual usage and adjust limits accordingly")
	}

	if len(instrs) > 10 {
		a.Recommendations = append(a.Recommendations, "Large batch - consider grouping related instructions")
	}

	tokens := 0
	for _, in := range instrs {
		if in.Category == domain.CategoryToken {
			tokens++
		}
	}
	if tokens > 5 {
		a.Recommendations = append(a.Recommendations, "Multiple token operations detected - consider using token batch instructions")
	}

	return a
}

// RefineWithSimulation adds recommendations based on a measured outcome.
// The input analysis is not modified.
func RefineWithSimulation(a domain.BatchAnalysis, out domain.SimulationOutcome) domain.BatchAnalysis {
	refined := a
	refined.Warnings = append([]string{}, a.Warnings...)
	refined.Recommendations = append([]string{}, a.Recommendations...)

	if !out.Succeeded || out.UnitsConsumed == nil {
		return refined
	}
	actual := *out.UnitsConsumed
	if actual > 0 && actual*2 < a.EstimatedUnits+a.Overhead {
		refined.Recommendations = append(refined.Recommendations,
			fmt.Sprintf("Actual usage (%d) much lower than estimated - consider reducing compute limit", actual))
	}
	return refined
}
