package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"solana-fee-lab/internal/batch"
	"solana-fee-lab/internal/domain"
)

// instructionFlags selects a batch by category counts and/or a JSON file
// holding a list of instruction specs.
type instructionFlags struct {
	counts map[domain.Category]*int
	file   string
}

func addInstructionFlags(c *cobra.Command) *instructionFlags {
	f := &instructionFlags{counts: make(map[domain.Category]*int)}
	for _, cat := range domain.Categories {
		f.counts[cat] = c.Flags().Int(string(cat), 0, fmt.Sprintf("number of %s instructions", cat))
	}
	c.Flags().StringVar(&f.file, "file", "", `JSON file with instructions, e.g. [{"category":"token","count":2}]`)
	return f
}

// specs returns the file specs followed by the category counts in display order.
func (f *instructionFlags) specs() ([]batch.InstructionSpec, error) {
	var out []batch.InstructionSpec
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return nil, fmt.Errorf("read instructions: %w", err)
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parse instructions %s: %w", f.file, err)
		}
	}
	for _, cat := range domain.Categories {
		n := *f.counts[cat]
		if n < 0 {
			return nil, fmt.Errorf("--%s must not be negative", cat)
		}
		if n > 0 {
			out = append(out, batch.InstructionSpec{Category: cat, Count: n})
		}
	}
	return out, nil
}

func (f *instructionFlags) build(c *batch.Catalog) ([]domain.InstructionDescriptor, error) {
	specs, err := f.specs()
	if err != nil {
		return nil, err
	}
	return c.Build(specs)
}
