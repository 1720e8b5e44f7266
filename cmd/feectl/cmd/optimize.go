package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"solana-fee-lab/internal/batch"
	"solana-fee-lab/internal/feestats"
)

var (
	optFormat string
	optOut    string
	optInstrs *instructionFlags
)

// optimizeCmd proposes batch plans without touching the network
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Group pending instructions into cheaper batches",
	Long: `Analyze a batch of instructions and propose packing strategies.

Runs offline with static compute unit estimates per category.

Examples:
  feectl optimize --transfer 5 --memo 5
  feectl optimize --file instructions.json --out plan.json`,
	Args: cobra.NoArgs,
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVarP(&optFormat, "format", "f", "table", "output format (table, json)")
	optimizeCmd.Flags().StringVarP(&optOut, "out", "o", "", "write the plan export JSON to this file")
	optInstrs = addInstructionFlags(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	instrs, err := optInstrs.build(newCatalog())
	if err != nil {
		return err
	}
	if len(instrs) == 0 {
		return fmt.Errorf("no instructions: use category flags such as --transfer 2 or --file")
	}

	optimizer := batch.NewOptimizer(batch.DefaultConfig())
	analysis := optimizer.Analyze(instrs)
	res := optimizer.OptimizeDetailed(instrs)

	if optOut != "" {
		payload, err := batch.SerializePlan(instrs, nil, res.Plans)
		if err != nil {
			return err
		}
		if err := os.WriteFile(optOut, payload, 0o644); err != nil {
			return fmt.Errorf("write plan: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if optFormat == "json" {
		return printJSON(out, map[string]interface{}{"analysis": analysis, "result": res})
	}
	if optFormat != "table" {
		return fmt.Errorf("unknown format %q", optFormat)
	}

	bold.Fprintf(out, "%d instructions, %s estimated units (+%d overhead)\n",
		len(instrs), humanize.Comma(analysis.EstimatedUnits), analysis.Overhead)
	fmt.Fprintf(out, "  Recommended limit: %s\n", humanize.Comma(analysis.RecommendedLimit))
	printWarnings(out, analysis.Warnings)
	for _, rec := range analysis.Recommendations {
		fmt.Fprintf(out, "  - %s\n", rec)
	}
	fmt.Fprintln(out)

	if len(res.Plans) == 0 {
		red.Fprintln(out, "No feasible plans")
	}
	for i, p := range res.Plans {
		line := fmt.Sprintf("%d. %-8s %2d batches  saves %-18s %s\n", i+1, p.StrategyKind, len(p.Groups),
			feestats.FormatSOL(p.EstimatedSavings), p.Description)
		if i == 0 {
			green.Fprint(out, line)
		} else {
			fmt.Fprint(out, line)
		}
		for j, g := range p.Groups {
			fmt.Fprintf(out, "     batch %d: %d instructions, %s units, %v\n",
				j+1, len(g), humanize.Comma(batch.GroupUnits(g)), batch.DistinctCategories(g))
		}
	}
	printWarnings(out, res.Warnings)
	return nil
}
