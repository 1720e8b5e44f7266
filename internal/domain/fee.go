package domain

import "fmt"

// FeeSample is a raw prioritization fee observation. Read-only.
type FeeSample struct {
	ObservedAtSlot int64  `json:"observedAtSlot"`
	Fee            uint64 `json:"fee"` // micro-lamports per compute unit
}

// FeeStatistics summarizes a sample set. Derived deterministically from sorted samples.
type FeeStatistics struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Median      float64 `json:"median"`
	P75         float64 `json:"p75"`
	P90         float64 `json:"p90"`
	P95         float64 `json:"p95"`
	Average     float64 `json:"average"`
	SampleCount int     `json:"sampleCount"`
	Recommended float64 `json:"recommended"` // max(P75, 1)
}

// SpeedTier selects a percentile for a fee recommendation.
type SpeedTier string

// Speed tiers, slowest first.
const (
	SpeedEconomy  SpeedTier = "economy"
	SpeedStandard SpeedTier = "standard"
	SpeedFast     SpeedTier = "fast"
	SpeedTurbo    SpeedTier = "turbo"
)

// SpeedTiers lists tiers from slowest to fastest.
var SpeedTiers = []SpeedTier{SpeedEconomy, SpeedStandard, SpeedFast, SpeedTurbo}

// FeeEstimate is a statistics snapshot with the samples it was derived from.
type FeeEstimate struct {
	Stats     FeeStatistics `json:"stats"`
	Samples   []FeeSample   `json:"samples"`
	FetchedAt int64         `json:"fetchedAt"` // Unix ms
	Degraded  bool          `json:"degraded"`  // true when stats are fallback constants after a fetch error
}

// StoredFeeSample is a fee sample persisted by the fee monitor.
type StoredFeeSample struct {
	FilterKey      string // sorted, comma-joined account filter; empty for global fees
	ObservedAtSlot int64
	Fee            uint64
	FetchedAt      int64 // Unix ms
}

// ParseSpeedTier resolves a tier name. Empty means standard.
func ParseSpeedTier(s string) (SpeedTier, error) {
	if s == "" {
		return SpeedStandard, nil
	}
	for _, t := range SpeedTiers {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown speed tier %q", s)
}
