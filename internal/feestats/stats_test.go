package feestats

import (
	"math"
	"testing"

	"solana-fee-lab/internal/domain"
)

func samplesOf(fees ...uint64) []domain.FeeSample {
	out := make([]domain.FeeSample, len(fees))
	for i, f := range fees {
		out[i] = domain.FeeSample{ObservedAtSlot: int64(100 + i), Fee: f}
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestComputeStatistics_TenSamples(t *testing.T) {
	stats := ComputeStatistics(samplesOf(0, 1000, 2000, 1500, 3000, 2500, 1200, 800, 1800, 2200))

	// sorted: 0 800 1000 1200 1500 1800 2000 2200 2500 3000
	if stats.Min != 0 || stats.Max != 3000 {
		t.Errorf("expected min 0 max 3000, got %v %v", stats.Min, stats.Max)
	}
	if !approx(stats.Median, 1650) {
		t.Errorf("expected median 1650, got %v", stats.Median)
	}
	if !approx(stats.P75, 2150) {
		t.Errorf("expected p75 2150, got %v", stats.P75)
	}
	if !approx(stats.P90, 2550) {
		t.Errorf("expected p90 2550, got %v", stats.P90)
	}
	if !approx(stats.P95, 2775) {
		t.Errorf("expected p95 2775, got %v", stats.P95)
	}
	if !approx(stats.Average, 1600) {
		t.Errorf("expected average 1600, got %v", stats.Average)
	}
	if !approx(stats.Recommended, 2150) {
		t.Errorf("expected recommended 2150, got %v", stats.Recommended)
	}
	if stats.SampleCount != 10 {
		t.Errorf("expected 10 samples, got %d", stats.SampleCount)
	}
}

func TestComputeStatistics_Empty(t *testing.T) {
	stats := ComputeStatistics(nil)
	if stats != DefaultStatistics() {
		t.Errorf("expected default statistics, got %+v", stats)
	}
	if stats.Recommended != 250 || stats.Median != 100 {
		t.Errorf("unexpected default values: %+v", stats)
	}
}

func TestComputeStatistics_SingleSample(t *testing.T) {
	stats := ComputeStatistics(samplesOf(42))
	for name, v := range map[string]float64{
		"min": stats.Min, "max": stats.Max, "median": stats.Median,
		"p75": stats.P75, "p90": stats.P90, "p95": stats.P95, "average": stats.Average,
	} {
		if v != 42 {
			t.Errorf("%s: expected 42, got %v", name, v)
		}
	}
}

func TestComputeStatistics_AllZero(t *testing.T) {
	stats := ComputeStatistics(samplesOf(0, 0, 0))
	if stats.P75 != 0 {
		t.Errorf("expected p75 0, got %v", stats.P75)
	}
	if stats.Recommended != 1 {
		t.Errorf("expected recommended floored at 1, got %v", stats.Recommended)
	}
}

func TestComputeStatistics_Ordering(t *testing.T) {
	sets := [][]uint64{
		{5},
		{1, 2},
		{7, 7, 7, 7},
		{100, 1, 50000, 3, 999, 12, 12, 8},
		{0, 1_000_000, 250, 250, 251},
	}
	for _, fees := range sets {
		s := ComputeStatistics(samplesOf(fees...))
		if !(s.Min <= s.Median && s.Median <= s.P75 && s.P75 <= s.P90 && s.P90 <= s.P95 && s.P95 <= s.Max) {
			t.Errorf("ordering violated for %v: %+v", fees, s)
		}
		if s.Average < s.Min || s.Average > s.Max {
			t.Errorf("average outside [min,max] for %v: %+v", fees, s)
		}
		if s.Recommended < 1 {
			t.Errorf("recommended below 1 for %v", fees)
		}
	}
}

func TestComputeStatistics_DoesNotMutateInput(t *testing.T) {
	in := samplesOf(3, 1, 2)
	ComputeStatistics(in)
	if in[0].Fee != 3 || in[1].Fee != 1 || in[2].Fee != 2 {
		t.Errorf("input reordered: %+v", in)
	}
}

func TestRecommendForSpeed_Monotonic(t *testing.T) {
	stats := ComputeStatistics(samplesOf(0, 1000, 2000, 1500, 3000, 2500, 1200, 800, 1800, 2200))

	want := map[domain.SpeedTier]uint64{
		domain.SpeedEconomy:  1650,
		domain.SpeedStandard: 2150,
		domain.SpeedFast:     2550,
		domain.SpeedTurbo:    2775,
	}
	var prev uint64
	for _, tier := range domain.SpeedTiers {
		got := RecommendForSpeed(stats, tier)
		if got != want[tier] {
			t.Errorf("%s: expected %d, got %d", tier, want[tier], got)
		}
		if got < prev {
			t.Errorf("%s: recommendation %d below slower tier %d", tier, got, prev)
		}
		prev = got
	}
}

func TestRecommendForSpeed_FloorAndCeil(t *testing.T) {
	zero := ComputeStatistics(samplesOf(0, 0))
	if got := RecommendForSpeed(zero, domain.SpeedTurbo); got != 1 {
		t.Errorf("expected floor of 1, got %d", got)
	}

	frac := domain.FeeStatistics{Median: 10.2, P75: 10.5, P90: 11, P95: 11.01}
	if got := RecommendForSpeed(frac, domain.SpeedEconomy); got != 11 {
		t.Errorf("expected 11, got %d", got)
	}
	if got := RecommendForSpeed(frac, "unknown"); got != 11 {
		t.Errorf("unknown tier should use p75, got %d", got)
	}
}

func TestEstimateConfirmationBand(t *testing.T) {
	stats := domain.FeeStatistics{Median: 100, P75: 250, P90: 500, P95: 750}

	tests := []struct {
		fee  float64
		want string
	}{
		{1000, "~1-2 slots (very fast)"},
		{750, "~1-2 slots (very fast)"},
		{600, "~2-4 slots (fast)"},
		{250, "~4-8 slots (standard)"},
		{100, "~8-16 slots (economy)"},
		{99, ">16 slots (slow)"},
		{0, ">16 slots (slow)"},
	}
	for _, tt := range tests {
		if got := EstimateConfirmationBand(tt.fee, stats); got != tt.want {
			t.Errorf("fee %v: expected %q, got %q", tt.fee, tt.want, got)
		}
	}
}

func TestBandFor_Monotonic(t *testing.T) {
	stats := ComputeStatistics(samplesOf(0, 1000, 2000, 1500, 3000, 2500, 1200, 800, 1800, 2200))
	prev := BandSlow
	for fee := 0.0; fee <= 4000; fee += 25 {
		b := BandFor(fee, stats)
		if b > prev {
			t.Fatalf("fee %v moved to slower band %v after %v", fee, b, prev)
		}
		prev = b
	}
}
