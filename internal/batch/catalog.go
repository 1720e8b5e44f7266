package batch

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"solana-fee-lab/internal/domain"
)

type template struct {
	label       string
	description string
}

var templates = map[domain.Category]template{
	domain.CategoryTransfer: {"SOL Transfer", "Transfer SOL between accounts"},
	domain.CategoryMemo:     {"Memo Instruction", "Add memo to transaction"},
	domain.CategoryToken:    {"Token Transfer", "Transfer SPL tokens"},
	domain.CategoryCustom:   {"Custom Instruction", "Custom program instruction"},
}

// Catalog builds instruction descriptors with unit estimates from a UnitTable.
type Catalog struct {
	units UnitTable
	newID func() string
}

// NewCatalog creates a Catalog. A nil table uses DefaultUnitTable.
func NewCatalog(units UnitTable) *Catalog {
	if units == nil {
		units = DefaultUnitTable()
	}
	return &Catalog{units: units, newID: uuid.NewString}
}

// Units returns the catalog's unit table.
func (c *Catalog) Units() UnitTable {
	return c.units
}

// NewInstruction creates a descriptor with a fresh id. Empty label or
// description fall back to the category template.
func (c *Catalog) NewInstruction(category domain.Category, label, description string) domain.InstructionDescriptor {
	tpl, ok := templates[category]
	if !ok {
		tpl = templates[domain.CategoryCustom]
	}
	if label == "" {
		label = tpl.label
	}
	if description == "" {
		description = tpl.description
	}
	return domain.InstructionDescriptor{
		ID:             c.newID(),
		Category:       category,
		Label:          label,
		Description:    description,
		EstimatedUnits: c.units.Estimate(category),
	}
}

// Repeat creates n instructions of one category, labelled with their position.
func (c *Catalog) Repeat(category domain.Category, n int) []domain.InstructionDescriptor {
	out := make([]domain.InstructionDescriptor, 0, n)
	for i := 0; i < n; i++ {
		in := c.NewInstruction(category, "", "")
		if n > 1 {
			in.Label = in.Label + " #" + strconv.Itoa(i+1)
		}
		out = append(out, in)
	}
	return out
}

// InstructionSpec requests Count instructions of one category. Count
// defaults to 1; Label and Description default to the category template.
type InstructionSpec struct {
	Category    domain.Category `json:"category"`
	Label       string          `json:"label,omitempty"`
	Description string          `json:"description,omitempty"`
	Count       int             `json:"count,omitempty"`
}

// MaxInstructions bounds the number of descriptors one Build call may produce.
const MaxInstructions = 1000

// Build expands specs into descriptors in order.
func (c *Catalog) Build(specs []InstructionSpec) ([]domain.InstructionDescriptor, error) {
	var out []domain.InstructionDescriptor
	total := 0
	for i, s := range specs {
		if !s.Category.Valid() {
			return nil, fmt.Errorf("instruction %d: unknown category %q", i, s.Category)
		}
		n := s.Count
		if n == 0 {
			n = 1
		}
		if n < 0 {
			return nil, fmt.Errorf("instruction %d: negative count %d", i, n)
		}
		if n > MaxInstructions-total {
			return nil, fmt.Errorf("instruction %d: count %d exceeds the limit of %d instructions", i, n, MaxInstructions)
		}
		total += n
		if s.Label == "" && s.Description == "" {
			out = append(out, c.Repeat(s.Category, n)...)
			continue
		}
		for j := 0; j < n; j++ {
			out = append(out, c.NewInstruction(s.Category, s.Label, s.Description))
		}
	}
	return out, nil
}
