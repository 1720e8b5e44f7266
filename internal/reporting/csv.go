package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
)

// RenderCSV renders plan rows as CSV string.
func RenderCSV(plans []PlanRow) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	_ = w.Write([]string{"strategy", "batch_count", "estimated_units", "estimated_savings_lamports", "description"})
	for _, p := range plans {
		_ = w.Write([]string{
			string(p.Strategy),
			strconv.Itoa(p.Batches),
			strconv.FormatInt(p.EstimatedUnits, 10),
			strconv.FormatInt(p.EstimatedSavings, 10),
			p.Description,
		})
	}
	w.Flush()

	return sb.String()
}

// RenderFeeCSV renders the fee table as CSV string.
func RenderFeeCSV(tiers []FeeTierRow) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	_ = w.Write([]string{"tier", "unit_price", "confirmation", "total_cost_lamports"})
	for _, t := range tiers {
		_ = w.Write([]string{
			string(t.Tier),
			strconv.FormatUint(t.UnitPrice, 10),
			t.Band,
			strconv.FormatInt(t.TotalCost, 10),
		})
	}
	w.Flush()

	return sb.String()
}
