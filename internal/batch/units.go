package batch

import "solana-fee-lab/internal/domain"

// DefaultUnits is used for categories missing from a UnitTable.
const DefaultUnits int64 = 500

// UnitTable maps instruction categories to estimated compute units.
// Values are tuning constants and may be overridden from configuration.
type UnitTable map[domain.Category]int64

// DefaultUnitTable returns the built-in estimates.
func DefaultUnitTable() UnitTable {
	return UnitTable{
		domain.CategoryTransfer: 450,
		domain.CategoryMemo:     200,
		domain.CategoryToken:    2300,
		domain.CategoryCustom:   1000,
	}
}

// Estimate returns the units for a category, or DefaultUnits when unknown.
func (t UnitTable) Estimate(c domain.Category) int64 {
	if v, ok := t[c]; ok {
		return v
	}
	return DefaultUnits
}

// WithOverrides returns a copy of t with positive overrides applied.
// Unknown category names are accepted so custom categories can be priced.
func (t UnitTable) WithOverrides(overrides map[string]int64) UnitTable {
	out := make(UnitTable, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			out[domain.Category(k)] = v
		}
	}
	return out
}

// EstimateUnitsForCategory looks a category up in the default table.
func EstimateUnitsForCategory(c domain.Category) int64 {
	return DefaultUnitTable().Estimate(c)
}
