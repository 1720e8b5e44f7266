package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/feestats"
	"solana-fee-lab/internal/idhash"
	"solana-fee-lab/internal/storage"
	"solana-fee-lab/internal/storage/sqlite"
)

var (
	simPayer  string
	simLimit  int64
	simPrice  uint64
	simSpeed  string
	simFormat string
	simInstrs *instructionFlags
)

// simulateCmd dry-runs a probe transaction
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Dry-run a probe transaction and report units and fee",
	Long: `Simulate a probe transaction for a payer with the given compute budget.

Without --price the unit price is derived from current fees for --speed.
Instruction flags add one placeholder per distinct category.

Examples:
  feectl simulate --payer <address> --limit 200000
  feectl simulate --payer <address> --limit 50000 --price 10000 --token 1`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVarP(&simPayer, "payer", "p", "", "fee payer address (required)")
	simulateCmd.Flags().Int64VarP(&simLimit, "limit", "l", 200_000, "compute unit limit")
	simulateCmd.Flags().Uint64Var(&simPrice, "price", 0, "unit price in micro-lamports (0 derives it from --speed)")
	simulateCmd.Flags().StringVarP(&simSpeed, "speed", "s", "", "speed tier used when --price is not set; empty means no priority fee")
	simulateCmd.Flags().StringVarP(&simFormat, "format", "f", "text", "output format (text, json)")
	simInstrs = addInstructionFlags(simulateCmd)
	_ = simulateCmd.MarkFlagRequired("payer")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rpc := newRPC()

	instrs, err := simInstrs.build(newCatalog())
	if err != nil {
		return err
	}

	var price *uint64
	switch {
	case simPrice > 0:
		price = &simPrice
	case simSpeed != "":
		speed, err := domain.ParseSpeedTier(simSpeed)
		if err != nil {
			return err
		}
		p := feestats.RecommendForSpeed(newEstimator(rpc).Estimate(ctx, nil).Stats, speed)
		price = &p
	}

	cfg := domain.ResourceBudgetConfig{UnitLimit: simLimit, UnitPrice: price}
	sim := newSimulator(rpc)
	var out domain.SimulationOutcome
	if len(instrs) > 0 {
		out = sim.SimulateInstructions(ctx, simPayer, cfg, instrs)
	} else {
		out = sim.Simulate(ctx, simPayer, cfg)
	}

	if out.FailureKind != domain.FailureInvalidInput {
		if err := recordSimulation(cmd, cfg, out); err != nil {
			yellow.Fprintf(cmd.ErrOrStderr(), "! %v\n", err)
		}
	}

	if simFormat == "json" {
		if err := printJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		printOutcome(cmd.OutOrStdout(), out)
	}

	if !out.Succeeded {
		return fmt.Errorf("simulation failed: %s", out.FailureKind)
	}
	return nil
}

func recordSimulation(cmd *cobra.Command, cfg domain.ResourceBudgetConfig, out domain.SimulationOutcome) error {
	db, err := openHistory(cmd.Context())
	if err != nil || db == nil {
		return err
	}
	defer db.Close()

	at := nowMillis()
	rec := &domain.SimulationRecord{
		RecordID:    idhash.ComputeSimulationID(simPayer, cfg.UnitLimit, cfg.UnitPrice, at),
		Payer:       simPayer,
		UnitLimit:   cfg.UnitLimit,
		UnitPrice:   cfg.UnitPrice,
		Outcome:     out,
		SimulatedAt: at,
	}
	if err := sqlite.NewSimulationStore(db).Insert(cmd.Context(), rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("record simulation: %w", err)
	}
	return nil
}
