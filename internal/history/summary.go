package history

import (
	"sort"

	"solana-fee-lab/internal/domain"
)

// Summary aggregates a set of usage rows.
type Summary struct {
	Count          int     `json:"count"`
	Failed         int     `json:"failed"`
	TotalFee       uint64  `json:"totalFee"`
	AverageUnits   float64 `json:"averageUnits"`
	MedianUnits    int64   `json:"medianUnits"`
	MaxUnits       int64   `json:"maxUnits"`
	SuggestedLimit int64   `json:"suggestedUnitLimit"` // max observed plus 10%, within network bounds
}

// Summarize aggregates usage rows. Failed transactions count towards fees
// but not towards unit statistics.
func Summarize(rows []domain.TransactionUsage) Summary {
	s := Summary{Count: len(rows)}

	var units []int64
	var total int64
	for _, r := range rows {
		s.TotalFee += r.Fee
		if r.Failed {
			s.Failed++
			continue
		}
		units = append(units, r.TotalUnits)
		total += r.TotalUnits
		if r.TotalUnits > s.MaxUnits {
			s.MaxUnits = r.TotalUnits
		}
	}
	if len(units) == 0 {
		return s
	}

	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	s.AverageUnits = float64(total) / float64(len(units))
	s.MedianUnits = units[len(units)/2]

	suggested := (s.MaxUnits*110 + 99) / 100
	if suggested < domain.MinUnitLimit {
		suggested = domain.MinUnitLimit
	}
	if suggested > domain.MaxUnitLimit {
		suggested = domain.MaxUnitLimit
	}
	s.SuggestedLimit = suggested
	return s
}
