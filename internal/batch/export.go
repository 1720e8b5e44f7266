package batch

import (
	"encoding/json"
	"fmt"
	"time"

	"solana-fee-lab/internal/domain"
)

// ExportInput carries everything that goes into a plan export.
type ExportInput struct {
	Instructions []domain.InstructionDescriptor
	Simulation   *domain.SimulationOutcome // last measured outcome, may be nil
	Analysis     *domain.BatchAnalysis     // optional
	Result       Result
}

// Exporter serializes plans. Now is the only source of nondeterminism.
type Exporter struct {
	Now func() time.Time
}

type exportDoc struct {
	Timestamp       string              `json:"timestamp"`
	Instructions    []exportInstruction `json:"instructions"`
	Simulation      exportSimulation    `json:"simulation"`
	Optimizations   []exportPlan        `json:"optimizations"`
	Recommendations []string            `json:"recommendations"`
	Warnings        []string            `json:"warnings"`
}

type exportInstruction struct {
	ID             string          `json:"id"`
	Label          string          `json:"label"`
	Category       domain.Category `json:"category"`
	Description    string          `json:"description"`
	EstimatedUnits int64           `json:"estimatedUnits"`
}

type exportSimulation struct {
	TotalEstimatedUnits int64              `json:"totalEstimatedUnits"`
	RecommendedLimit    *int64             `json:"recommendedLimit,omitempty"`
	CanBatch            *bool              `json:"canBatch,omitempty"`
	Succeeded           *bool              `json:"succeeded,omitempty"`
	UnitsConsumed       *int64             `json:"unitsConsumed,omitempty"`
	ComputedFee         *int64             `json:"computedFee,omitempty"`
	FailureReason       string             `json:"failureReason,omitempty"`
	FailureKind         domain.FailureKind `json:"failureKind,omitempty"`
	Path                domain.ProbePath   `json:"path,omitempty"`
}

type exportPlan struct {
	Strategy         domain.StrategyKind `json:"strategy"`
	BatchCount       int                 `json:"batchCount"`
	EstimatedSavings int64               `json:"estimatedSavings"`
	Description      string              `json:"description"`
	Batches          []exportBatch       `json:"batches"`
}

type exportBatch struct {
	InstructionCount   int               `json:"instructionCount"`
	DistinctCategories []domain.Category `json:"distinctCategories"`
	EstimatedUnits     int64             `json:"estimatedUnits"`
}

// SerializePlan renders instructions, the last simulation and plans as
// indented JSON stamped with the current time.
func SerializePlan(instrs []domain.InstructionDescriptor, lastSimulation *domain.SimulationOutcome, plans []domain.BatchPlan) ([]byte, error) {
	return (&Exporter{}).Export(ExportInput{
		Instructions: instrs,
		Simulation:   lastSimulation,
		Result:       Result{Plans: plans},
	})
}

// Export renders in as indented JSON. Field order and content are stable for
// equal inputs apart from the timestamp.
func (e *Exporter) Export(in ExportInput) ([]byte, error) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	doc := exportDoc{
		Timestamp:       now().UTC().Format(time.RFC3339Nano),
		Instructions:    make([]exportInstruction, 0, len(in.Instructions)),
		Optimizations:   make([]exportPlan, 0, len(in.Result.Plans)),
		Recommendations: []string{},
		Warnings:        []string{},
	}

	for _, ins := range in.Instructions {
		doc.Instructions = append(doc.Instructions, exportInstruction{
			ID:             ins.ID,
			Label:          ins.Label,
			Category:       ins.Category,
			Description:    ins.Description,
			EstimatedUnits: ins.EstimatedUnits,
		})
	}

	doc.Simulation.TotalEstimatedUnits = sumUnits(in.Instructions)
	if a := in.Analysis; a != nil {
		limit, canBatch := a.RecommendedLimit, a.CanBatch
		doc.Simulation.RecommendedLimit = &limit
		doc.Simulation.CanBatch = &canBatch
		doc.Recommendations = append(doc.Recommendations, a.Recommendations...)
		doc.Warnings = append(doc.Warnings, a.Warnings...)
	}
	if s := in.Simulation; s != nil {
		ok := s.Succeeded
		doc.Simulation.Succeeded = &ok
		doc.Simulation.UnitsConsumed = s.UnitsConsumed
		doc.Simulation.ComputedFee = s.ComputedFee
		doc.Simulation.FailureReason = s.FailureReason
		doc.Simulation.FailureKind = s.FailureKind
		doc.Simulation.Path = s.Path
		doc.Warnings = append(doc.Warnings, s.Warnings...)
	}
	doc.Warnings = append(doc.Warnings, in.Result.Warnings...)

	for _, p := range in.Result.Plans {
		ep := exportPlan{
			Strategy:         p.StrategyKind,
			BatchCount:       len(p.Groups),
			EstimatedSavings: p.EstimatedSavings,
			Description:      p.Description,
			Batches:          make([]exportBatch, 0, len(p.Groups)),
		}
		for _, g := range p.Groups {
			ep.Batches = append(ep.Batches, exportBatch{
				InstructionCount:   len(g),
				DistinctCategories: DistinctCategories(g),
				EstimatedUnits:     sumUnits(g),
			})
		}
		doc.Optimizations = append(doc.Optimizations, ep)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal plan export: %w", err)
	}
	return out, nil
}
