package batch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-fee-lab/internal/domain"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestExporter_Layout(t *testing.T) {
	in := []domain.InstructionDescriptor{
		instr("a", domain.CategoryTransfer, 450),
		instr("b", domain.CategoryMemo, 200),
		instr("c", domain.CategoryMemo, 200),
	}
	units := int64(780)
	fee := int64(5000)
	sim := &domain.SimulationOutcome{
		Succeeded:     true,
		UnitsConsumed: &units,
		ComputedFee:   &fee,
		Warnings:      []string{"Low compute unit usage: Consider reducing limit to ~936 units"},
		Path:          domain.ProbePathPrimary,
	}
	o := NewOptimizer(DefaultConfig())
	analysis := o.Analyze(in)

	exp := &Exporter{Now: fixedClock}
	out, err := exp.Export(ExportInput{
		Instructions: in,
		Simulation:   sim,
		Analysis:     &analysis,
		Result:       o.OptimizeDetailed(in),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "{\n  \"timestamp\": \"2024-03-01T12:00:00Z\""))

	var doc struct {
		Timestamp    string `json:"timestamp"`
		Instructions []struct {
			ID             string `json:"id"`
			Category       string `json:"category"`
			EstimatedUnits int64  `json:"estimatedUnits"`
		} `json:"instructions"`
		Simulation struct {
			TotalEstimatedUnits int64  `json:"totalEstimatedUnits"`
			RecommendedLimit    int64  `json:"recommendedLimit"`
			CanBatch            bool   `json:"canBatch"`
			UnitsConsumed       int64  `json:"unitsConsumed"`
			Path                string `json:"path"`
		} `json:"simulation"`
		Optimizations []struct {
			Strategy         string `json:"strategy"`
			BatchCount       int    `json:"batchCount"`
			EstimatedSavings int64  `json:"estimatedSavings"`
			Batches          []struct {
				InstructionCount   int      `json:"instructionCount"`
				DistinctCategories []string `json:"distinctCategories"`
				EstimatedUnits     int64    `json:"estimatedUnits"`
			} `json:"batches"`
		} `json:"optimizations"`
		Warnings []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))

	assert.Len(t, doc.Instructions, 3)
	assert.Equal(t, int64(850), doc.Simulation.TotalEstimatedUnits)
	assert.Equal(t, int64(1155), doc.Simulation.RecommendedLimit)
	assert.True(t, doc.Simulation.CanBatch)
	assert.Equal(t, int64(780), doc.Simulation.UnitsConsumed)
	assert.Equal(t, "primary", doc.Simulation.Path)
	assert.Equal(t, sim.Warnings, doc.Warnings)

	require.Len(t, doc.Optimizations, 3)
	assert.Equal(t, "split", doc.Optimizations[0].Strategy)
	assert.Equal(t, 1, doc.Optimizations[0].BatchCount)
	assert.Equal(t, []string{"transfer", "memo"}, doc.Optimizations[0].Batches[0].DistinctCategories)

	category := doc.Optimizations[1]
	assert.Equal(t, "optimize", category.Strategy)
	assert.Equal(t, int64(5000), category.EstimatedSavings)
	require.Len(t, category.Batches, 2)
	assert.Equal(t, 2, category.Batches[1].InstructionCount)
	assert.Equal(t, int64(400), category.Batches[1].EstimatedUnits)
}

func TestExporter_DeterministicApartFromTimestamp(t *testing.T) {
	in := manyOf(domain.CategoryToken, 2300, 4)
	plans := Optimize(in)

	first, err := (&Exporter{Now: fixedClock}).Export(ExportInput{Instructions: in, Result: Result{Plans: plans}})
	require.NoError(t, err)
	second, err := (&Exporter{Now: fixedClock}).Export(ExportInput{Instructions: in, Result: Result{Plans: plans}})
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	later, err := (&Exporter{Now: func() time.Time { return fixedClock().Add(time.Hour) }}).
		Export(ExportInput{Instructions: in, Result: Result{Plans: plans}})
	require.NoError(t, err)
	assert.NotEqual(t, string(first), string(later))
	assert.Equal(t,
		strings.SplitN(string(first), "\n", 3)[2],
		strings.SplitN(string(later), "\n", 3)[2])
}

func TestSerializePlan_NoSimulation(t *testing.T) {
	out, err := SerializePlan(nil, nil, nil)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	for _, key := range []string{"timestamp", "instructions", "simulation", "optimizations", "warnings"} {
		assert.Contains(t, doc, key)
	}
	assert.Empty(t, doc["optimizations"])
}
