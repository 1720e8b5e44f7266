package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"solana-fee-lab/internal/feestats"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Fee Plan Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.Payer != "" {
		sb.WriteString(fmt.Sprintf("Payer: `%s`\n\n", r.Payer))
	}
	if r.ExportID != "" {
		sb.WriteString(fmt.Sprintf("Export: `%s`\n\n", r.ExportID))
	}

	// Fees
	sb.WriteString("## Priority Fees\n\n")
	sb.WriteString(fmt.Sprintf("Unit price: %s micro-lamports/CU (%d samples)\n\n", humanize.Comma(int64(r.UnitPrice)), r.SampleCount))
	if r.Degraded {
		sb.WriteString("**Fee data unavailable.** Figures below use fallback estimates.\n\n")
	}
	sb.WriteString(fmt.Sprintf("| Tier | Unit Price | Confirmation | Cost at %s CU |\n", humanize.Comma(r.Analysis.RecommendedLimit)))
	sb.WriteString("|------|------------|--------------|---------------|\n")
	for _, t := range r.FeeTiers {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			t.Tier, humanize.Comma(int64(t.UnitPrice)), t.Band, feestats.FormatSOL(t.TotalCost)))
	}
	sb.WriteString("\n")

	// Analysis
	sb.WriteString("## Batch Analysis\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Instructions | %d |\n", r.Instructions))
	sb.WriteString(fmt.Sprintf("| Estimated Units | %s |\n", humanize.Comma(r.Analysis.EstimatedUnits)))
	sb.WriteString(fmt.Sprintf("| Overhead | %s |\n", humanize.Comma(r.Analysis.Overhead)))
	sb.WriteString(fmt.Sprintf("| Recommended Limit | %s |\n", humanize.Comma(r.Analysis.RecommendedLimit)))
	sb.WriteString(fmt.Sprintf("| Fits One Transaction | %t |\n", r.Analysis.CanBatch))
	sb.WriteString("\n")
	writeList(&sb, "### Recommendations", r.Analysis.Recommendations)

	// Plans
	sb.WriteString("## Plans\n\n")
	if len(r.Plans) > 0 {
		sb.WriteString("| Strategy | Batches | Units | Savings | Description |\n")
		sb.WriteString("|----------|---------|-------|---------|-------------|\n")
		for _, p := range r.Plans {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s |\n",
				p.Strategy, p.Batches, humanize.Comma(p.EstimatedUnits), feestats.FormatSOL(p.EstimatedSavings), p.Description))
		}
	} else {
		sb.WriteString("No feasible plans.\n")
	}
	sb.WriteString("\n")
	if len(r.Infeasible) > 0 {
		sb.WriteString(fmt.Sprintf("Oversized instructions: %s\n\n", strings.Join(r.Infeasible, ", ")))
	}

	// Simulation
	sb.WriteString("## Simulation\n\n")
	var sims []SimulationRow
	if r.Simulation != nil {
		sims = append(sims, *r.Simulation)
	}
	sims = append(sims, r.BatchSimulations...)
	if len(sims) > 0 {
		writeSimulations(&sb, sims)
	} else {
		sb.WriteString("Not simulated (no payer).\n")
	}
	sb.WriteString("\n")

	// History
	if r.Payer != "" {
		sb.WriteString("## Payer History\n\n")
		if r.Usage != nil {
			sb.WriteString("| Metric | Value |\n")
			sb.WriteString("|--------|-------|\n")
			sb.WriteString(fmt.Sprintf("| Transactions | %d |\n", r.Usage.Count))
			sb.WriteString(fmt.Sprintf("| Failed | %d |\n", r.Usage.Failed))
			sb.WriteString(fmt.Sprintf("| Total Fees | %s |\n", feestats.FormatSOL(int64(r.Usage.TotalFee))))
			sb.WriteString(fmt.Sprintf("| Average Units | %.0f |\n", r.Usage.AverageUnits))
			sb.WriteString(fmt.Sprintf("| Median Units | %s |\n", humanize.Comma(r.Usage.MedianUnits)))
			sb.WriteString(fmt.Sprintf("| Max Units | %s |\n", humanize.Comma(r.Usage.MaxUnits)))
			sb.WriteString(fmt.Sprintf("| Suggested Limit | %s |\n", humanize.Comma(r.Usage.SuggestedLimit)))
			sb.WriteString("\n")
		} else {
			sb.WriteString("No recorded transactions.\n\n")
		}
		if len(r.RecentSimulations) > 0 {
			sb.WriteString("### Recent Simulations\n\n")
			writeSimulations(&sb, r.RecentSimulations)
			sb.WriteString("\n")
		}
	}

	writeList(&sb, "## Warnings", r.Warnings)
	writeList(&sb, "## Errors", r.Errors)

	return sb.String()
}

func writeSimulations(sb *strings.Builder, rows []SimulationRow) {
	sb.WriteString("| Run | Result | Path | Units | Fee | Failure |\n")
	sb.WriteString("|-----|--------|------|-------|-----|---------|\n")
	for _, s := range rows {
		result := "FAIL"
		if s.Succeeded {
			result = "OK"
		}
		failure := ""
		if s.FailureKind != "" {
			failure = fmt.Sprintf("%s: %s", s.FailureKind, s.FailureReason)
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
			s.Label, result, s.Path, humanize.Comma(s.UnitsConsumed), feestats.FormatSOL(s.Fee), failure))
	}
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + "\n\n")
	for _, it := range items {
		sb.WriteString(fmt.Sprintf("- %s\n", it))
	}
	sb.WriteString("\n")
}
