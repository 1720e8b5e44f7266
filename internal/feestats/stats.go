// Package feestats derives prioritization fee statistics and recommendations
// from recent network fee samples.
package feestats

import (
	"math"
	"sort"

	"solana-fee-lab/internal/domain"
)

// DefaultStatistics is returned when no samples are available.
func DefaultStatistics() domain.FeeStatistics {
	return domain.FeeStatistics{
		Min:         0,
		Max:         1000,
		Median:      100,
		P75:         250,
		P90:         500,
		P95:         750,
		Average:     200,
		SampleCount: 0,
		Recommended: 250,
	}
}

// FallbackStatistics is returned when fetching samples fails.
// Values are higher than the defaults to bias towards landing.
func FallbackStatistics() domain.FeeStatistics {
	return domain.FeeStatistics{
		Min:         0,
		Max:         2000,
		Median:      300,
		P75:         500,
		P90:         1000,
		P95:         1500,
		Average:     400,
		SampleCount: 0,
		Recommended: 500,
	}
}

// ComputeStatistics summarizes fee samples.
// Percentiles use linear interpolation over the ascending-sorted fees.
func ComputeStatistics(samples []domain.FeeSample) domain.FeeStatistics {
	n := len(samples)
	if n == 0 {
		return DefaultStatistics()
	}

	fees := make([]float64, n)
	var sum float64
	for i, s := range samples {
		fees[i] = float64(s.Fee)
		sum += fees[i]
	}
	sort.Float64s(fees)

	p75 := computePercentile(fees, 0.75)
	return domain.FeeStatistics{
		Min:         fees[0],
		Max:         fees[n-1],
		Median:      computePercentile(fees, 0.50),
		P75:         p75,
		P90:         computePercentile(fees, 0.90),
		P95:         computePercentile(fees, 0.95),
		Average:     sum / float64(n),
		SampleCount: n,
		Recommended: math.Max(p75, 1),
	}
}

// computePercentile returns the p-th quantile (0..1) of sorted values.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// RecommendForSpeed picks the percentile for a speed tier, rounded up to a
// whole micro-lamport and never below 1. Unknown tiers map to standard.
func RecommendForSpeed(stats domain.FeeStatistics, tier domain.SpeedTier) uint64 {
	var v float64
	switch tier {
	case domain.SpeedEconomy:
		v = stats.Median
	case domain.SpeedFast:
		v = stats.P90
	case domain.SpeedTurbo:
		v = stats.P95
	default:
		v = stats.P75
	}
	// Tolerate interpolation noise so 2550.0000000001 still rounds to 2550.
	return uint64(math.Ceil(math.Max(v, 1) - 1e-9))
}

// Band is an expected confirmation latency bucket, fastest first.
type Band int

// Bands ordered from fastest to slowest.
const (
	BandVeryFast Band = iota
	BandFast
	BandStandard
	BandEconomy
	BandSlow
)

var bandLabels = [...]string{
	BandVeryFast: "~1-2 slots (very fast)",
	BandFast:     "~2-4 slots (fast)",
	BandStandard: "~4-8 slots (standard)",
	BandEconomy:  "~8-16 slots (economy)",
	BandSlow:     ">16 slots (slow)",
}

// String returns the human-readable label.
func (b Band) String() string {
	if b < BandVeryFast || b > BandSlow {
		return "unknown"
	}
	return bandLabels[b]
}

// BandFor maps a fee to its confirmation band. Higher fees never land in a slower band.
func BandFor(fee float64, stats domain.FeeStatistics) Band {
	switch {
	case fee >= stats.P95:
		return BandVeryFast
	case fee >= stats.P90:
		return BandFast
	case fee >= stats.P75:
		return BandStandard
	case fee >= stats.Median:
		return BandEconomy
	default:
		return BandSlow
	}
}

// EstimateConfirmationBand returns the label of the band a fee falls into.
func EstimateConfirmationBand(fee float64, stats domain.FeeStatistics) string {
	return BandFor(fee, stats).String()
}
