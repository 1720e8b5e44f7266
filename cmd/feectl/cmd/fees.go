package cmd

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/feestats"
	"solana-fee-lab/internal/solana"
)

var (
	feesAccounts []string
	feesSpeed    string
	feesUnits    int64
	feesFormat   string
)

// feesCmd shows recent prioritization fees
var feesCmd = &cobra.Command{
	Use:   "fees",
	Short: "Show recent priority fee statistics and recommendations",
	Long: `Fetch recent prioritization fees and recommend a unit price per speed tier.

Examples:
  feectl fees
  feectl fees --speed turbo --units 300000
  feectl fees --accounts <writable account> --format json`,
	Args: cobra.NoArgs,
	RunE: runFees,
}

func init() {
	feesCmd.Flags().StringSliceVar(&feesAccounts, "accounts", nil, "writable accounts to filter fees by")
	feesCmd.Flags().StringVarP(&feesSpeed, "speed", "s", "standard", "speed tier (economy, standard, fast, turbo)")
	feesCmd.Flags().Int64VarP(&feesUnits, "units", "u", 200_000, "compute units to price")
	feesCmd.Flags().StringVarP(&feesFormat, "format", "f", "table", "output format (table, json)")
}

func runFees(cmd *cobra.Command, args []string) error {
	speed, err := domain.ParseSpeedTier(feesSpeed)
	if err != nil {
		return err
	}
	for _, acct := range feesAccounts {
		if err := solana.ValidateAddress(acct); err != nil {
			return err
		}
	}

	est := newEstimator(newRPC()).Estimate(cmd.Context(), feesAccounts)
	out := cmd.OutOrStdout()

	if feesFormat == "json" {
		return printJSON(out, est)
	}
	if feesFormat != "table" {
		return fmt.Errorf("unknown format %q", feesFormat)
	}

	s := est.Stats
	bold.Fprintf(out, "Priority fees on %s", cfg.Network)
	if len(feesAccounts) > 0 {
		fmt.Fprintf(out, " for %s", strings.Join(feesAccounts, ", "))
	}
	fmt.Fprintln(out)
	if est.Degraded {
		yellow.Fprintln(out, "! Fee data unavailable; showing fallback estimates")
	}
	fmt.Fprintf(out, "  Samples: %d  Min: %.0f  Median: %.0f  Avg: %.0f  Max: %.0f (micro-lamports/CU)\n\n",
		s.SampleCount, s.Min, s.Median, s.Average, s.Max)

	fmt.Fprintf(out, "  %-9s %12s  %-24s %12s  %s\n", "TIER", "UNIT PRICE", "CONFIRMATION", "PRIORITY", "COST @ "+humanize.Comma(feesUnits)+" CU")
	for _, tier := range domain.SpeedTiers {
		price := feestats.RecommendForSpeed(s, tier)
		line := fmt.Sprintf("  %-9s %12s  %-24s %12s  %s\n", tier, humanize.Comma(int64(price)),
			feestats.EstimateConfirmationBand(float64(price), s),
			humanize.Comma(feestats.PriorityFee(feesUnits, price)),
			feestats.FormatSOL(feestats.TotalCost(feesUnits, price, feestats.DefaultBaseFee)))
		if tier == speed {
			cyan.Fprint(out, line)
		} else {
			fmt.Fprint(out, line)
		}
	}
	return nil
}
