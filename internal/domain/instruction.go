package domain

// Category classifies a pending instruction for unit estimation and grouping.
type Category string

// Category constants.
const (
	CategoryTransfer Category = "transfer"
	CategoryMemo     Category = "memo"
	CategoryToken    Category = "token"
	CategoryCustom   Category = "custom"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryTransfer, CategoryMemo, CategoryToken, CategoryCustom}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTransfer, CategoryMemo, CategoryToken, CategoryCustom:
		return true
	}
	return false
}

// InstructionDescriptor is one pending step of a batch.
// Immutable once simulated; simulation results live in SimulationOutcome.
type InstructionDescriptor struct {
	ID             string   `json:"id"`
	Category       Category `json:"category"`
	Label          string   `json:"label"`
	Description    string   `json:"description,omitempty"`
	EstimatedUnits int64    `json:"estimatedUnits"` // static lookup by category, not measured
}
