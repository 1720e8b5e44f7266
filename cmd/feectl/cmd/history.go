package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"solana-fee-lab/internal/history"
	"solana-fee-lab/internal/solana"
)

var (
	histPayer  string
	histLimit  int
	histFormat string
)

// historyCmd summarizes a payer's recent compute usage
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show compute usage of a payer's recent transactions",
	Long: `Read a payer's recent transactions and summarize their compute usage,
including a suggested compute unit limit.

Examples:
  feectl history --payer <address>
  feectl history --payer <address> --limit 100 --format json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&histPayer, "payer", "p", "", "fee payer address (required)")
	historyCmd.Flags().IntVarP(&histLimit, "limit", "n", 25, "number of recent transactions")
	historyCmd.Flags().StringVarP(&histFormat, "format", "f", "table", "output format (table, json)")
	_ = historyCmd.MarkFlagRequired("payer")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := solana.ValidateAddress(histPayer); err != nil {
		return err
	}

	reader := history.NewReader(history.Options{Source: newRPC(), Logger: logger("history")})
	rows, err := reader.RecentUsage(cmd.Context(), histPayer, histLimit)
	if err != nil {
		return err
	}
	summary := history.Summarize(rows)

	out := cmd.OutOrStdout()
	if histFormat == "json" {
		return printJSON(out, map[string]interface{}{"transactions": rows, "summary": summary})
	}
	if histFormat != "table" {
		return fmt.Errorf("unknown format %q", histFormat)
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No transactions found")
		return nil
	}

	fmt.Fprintf(out, "%-12s %-20s %10s %10s  %s\n", "SLOT", "TIME", "UNITS", "FEE", "SIGNATURE")
	for _, r := range rows {
		when := "-"
		if r.BlockTime > 0 {
			when = time.Unix(r.BlockTime, 0).UTC().Format("2006-01-02 15:04:05")
		}
		line := fmt.Sprintf("%-12d %-20s %10s %10s  %s\n", r.Slot, when,
			humanize.Comma(r.TotalUnits), humanize.Comma(int64(r.Fee)), r.Signature)
		if r.Failed {
			red.Fprint(out, line)
		} else {
			fmt.Fprint(out, line)
		}
	}

	fmt.Fprintln(out)
	bold.Fprintf(out, "%d transactions (%d failed)\n", summary.Count, summary.Failed)
	fmt.Fprintf(out, "  Units: avg %.0f, median %s, max %s\n",
		summary.AverageUnits, humanize.Comma(summary.MedianUnits), humanize.Comma(summary.MaxUnits))
	if summary.SuggestedLimit > 0 {
		green.Fprintf(out, "  Suggested compute unit limit: %s\n", humanize.Comma(summary.SuggestedLimit))
	}
	return nil
}
