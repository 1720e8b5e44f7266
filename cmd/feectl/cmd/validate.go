package cmd

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"solana-fee-lab/internal/simulator"
)

var validateWorkload string

// validateLimitCmd checks a compute unit limit
var validateLimitCmd = &cobra.Command{
	Use:   "validate-limit [limit]",
	Short: "Check a compute unit limit against network bounds",
	Long: `Check that a compute unit limit is a whole number between 200 and 1,400,000,
or print a starting limit for a workload.

Examples:
  feectl validate-limit 200000
  feectl validate-limit --workload defi`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidateLimit,
}

func init() {
	validateLimitCmd.Flags().StringVarP(&validateWorkload, "workload", "w", "", "print a recommended limit (simple, token, defi, nft, custom)")
}

func runValidateLimit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if validateWorkload != "" {
		units := simulator.RecommendedUnitsForWorkload(simulator.Workload(validateWorkload))
		fmt.Fprintf(out, "Recommended limit for %s: %s\n", validateWorkload, humanize.Comma(units))
		if len(args) == 0 {
			return nil
		}
	}
	if len(args) == 0 {
		return fmt.Errorf("limit argument required")
	}

	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", simulator.ErrInvalidLimit, args[0])
	}
	res := simulator.ValidateLimitValue(v)
	if !res.Valid {
		red.Fprintln(out, res.Message)
		return res.Err()
	}
	green.Fprintf(out, "%s is a valid compute unit limit\n", args[0])
	return nil
}
