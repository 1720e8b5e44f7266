package cmd

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/history"
	"solana-fee-lab/internal/orchestrator"
	"solana-fee-lab/internal/reporting"
	"solana-fee-lab/internal/storage"
	"solana-fee-lab/internal/storage/memory"
	"solana-fee-lab/internal/storage/sqlite"
)

var (
	reportPayer     string
	reportPrice     uint64
	reportSpeed     string
	reportAccounts  []string
	reportBatches   bool
	reportHistory   int
	reportFormat    string
	reportOut       string
	reportExportOut string
	reportInstrs    *instructionFlags
)

// reportCmd runs a full planning pass and renders it
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Plan a batch end to end and render a report",
	Long: `Estimate fees, optimize the batch, simulate it for a payer and render
the result as Markdown or CSV.

Simulations and plan exports are kept in the local history database.

Examples:
  feectl report --transfer 4 --memo 2
  feectl report --payer <address> --token 3 --simulate-batches --out report.md
  feectl report --payer <address> --custom 2 --format csv`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVarP(&reportPayer, "payer", "p", "", "fee payer; enables simulation")
	f.Uint64Var(&reportPrice, "price", 0, "unit price in micro-lamports (0 derives it from --speed)")
	f.StringVarP(&reportSpeed, "speed", "s", "standard", "speed tier (economy, standard, fast, turbo)")
	f.StringSliceVar(&reportAccounts, "accounts", nil, "writable accounts to filter fees by")
	f.BoolVar(&reportBatches, "simulate-batches", false, "simulate every batch of the best plan")
	f.IntVar(&reportHistory, "history", 25, "recent payer transactions to summarize (0 disables)")
	f.StringVarP(&reportFormat, "format", "f", "markdown", "output format (markdown, csv, json)")
	f.StringVarP(&reportOut, "out", "o", "", "write the report to this file instead of stdout")
	f.StringVar(&reportExportOut, "export", "", "write the plan export JSON to this file")
	reportInstrs = addInstructionFlags(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if reportFormat != "markdown" && reportFormat != "csv" && reportFormat != "json" {
		return fmt.Errorf("unknown format %q", reportFormat)
	}
	speed, err := domain.ParseSpeedTier(reportSpeed)
	if err != nil {
		return err
	}
	instrs, err := reportInstrs.build(newCatalog())
	if err != nil {
		return err
	}

	rpc := newRPC()
	opts := orchestrator.PlannerOptions{
		Estimator: newEstimator(rpc),
		Simulator: newSimulator(rpc),
		Logger:    logger("planner"),
	}
	var simulations storage.SimulationStore
	db, err := openHistory(ctx)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		simulations = sqlite.NewSimulationStore(db)
		opts.Simulations = simulations
		opts.Exports = sqlite.NewPlanExportStore(db)
	}

	req := orchestrator.PlanRequest{
		Instructions:    instrs,
		Payer:           reportPayer,
		Speed:           speed,
		Accounts:        reportAccounts,
		SimulateBatches: reportBatches,
	}
	if reportPrice > 0 {
		req.UnitPrice = &reportPrice
	}
	finish := func() {}
	if reportBatches && reportPayer != "" {
		req.OnBatch, finish = batchProgress()
	}

	res, err := orchestrator.NewPlanner(opts).Plan(ctx, req)
	finish()
	if err != nil {
		return err
	}
	for _, e := range res.Errors {
		yellow.Fprintf(cmd.ErrOrStderr(), "! %s\n", e)
	}

	if reportExportOut != "" {
		if err := os.WriteFile(reportExportOut, res.Export, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
	}

	var usage storage.UsageStore
	if reportPayer != "" && reportHistory > 0 {
		usage = recentUsage(cmd, rpc, reportPayer, reportHistory)
	}

	report, err := reporting.NewGenerator(simulations, usage).Generate(ctx, res, reportPayer)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if reportOut != "" {
		f, err := os.Create(reportOut)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch reportFormat {
	case "csv":
		_, err = fmt.Fprint(w, reporting.RenderCSV(report.Plans))
	case "json":
		err = printJSON(w, report)
	default:
		_, err = fmt.Fprint(w, reporting.RenderMarkdown(report))
	}
	if err == nil && reportOut != "" {
		green.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", reportOut)
	}
	return err
}

// batchProgress shows a progress bar while batches are simulated. The
// returned finish func must be called once planning returns.
func batchProgress() (func(int, int), func()) {
	var bar *progressbar.ProgressBar
	onBatch := func(i, total int) {
		if bar == nil {
			if bar = newProgress(total, "Simulating batches"); bar == nil {
				return
			}
		}
		bar.Set(i)
	}
	finish := func() {
		if bar != nil {
			bar.Finish()
		}
	}
	return onBatch, finish
}

// recentUsage loads the payer's recent transactions into a throwaway store.
// Failures only drop the history section.
func recentUsage(cmd *cobra.Command, src history.Source, payer string, limit int) storage.UsageStore {
	reader := history.NewReader(history.Options{Source: src, Logger: logger("history")})
	rows, err := reader.RecentUsage(cmd.Context(), payer, limit)
	if err != nil {
		yellow.Fprintf(cmd.ErrOrStderr(), "! payer history unavailable: %v\n", err)
		return nil
	}
	store := memory.NewUsageStore()
	for i := range rows {
		// signatures are unique per page
		_ = store.Insert(cmd.Context(), &rows[i])
	}
	return store
}
