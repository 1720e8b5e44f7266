package domain

// StrategyKind names a packing strategy.
type StrategyKind string

// Strategy kinds. GroupByCategory keeps the "optimize" wire name.
const (
	StrategySingle          StrategyKind = "single"
	StrategySplitByCapacity StrategyKind = "split"
	StrategyGroupByCategory StrategyKind = "optimize"
)

// BatchPlan is one proposed grouping of the input instructions.
// Every input instruction appears in exactly one group.
type BatchPlan struct {
	StrategyKind        StrategyKind              `json:"strategy"`
	Groups              [][]InstructionDescriptor `json:"groups"`
	TotalEstimatedUnits int64                     `json:"totalEstimatedUnits"`
	EstimatedSavings    int64                     `json:"estimatedSavings"` // lamports
	Description         string                    `json:"description"`
}

// BatchAnalysis is the pre-simulation capacity check of a whole batch.
type BatchAnalysis struct {
	EstimatedUnits   int64    `json:"estimatedUnits"`
	Overhead         int64    `json:"overhead"`
	RecommendedLimit int64    `json:"recommendedLimit"`
	CanBatch         bool     `json:"canBatch"`
	Warnings         []string `json:"warnings"`
	Recommendations  []string `json:"recommendations"`
}

// PlanExport is a persisted serialized plan.
type PlanExport struct {
	ExportID   string // deterministic hash of the payload
	Payer      string
	PlanCount  int
	Payload    []byte // serialized JSON
	ExportedAt int64  // Unix ms
}
