// Package cmd provides the CLI commands for feectl.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"solana-fee-lab/internal/batch"
	"solana-fee-lab/internal/config"
	"solana-fee-lab/internal/feestats"
	"solana-fee-lab/internal/observability"
	"solana-fee-lab/internal/simulator"
	"solana-fee-lab/internal/solana"
	"solana-fee-lab/internal/storage/sqlite"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	v   = config.New()
	cfg *config.Config

	shutdownTracing func(context.Context) error

	nowMillis = func() int64 { return time.Now().UnixMilli() }
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "feectl",
	Short: "Estimate Solana priority fees and plan compute budgets",
	Long: `feectl measures what a Solana transaction will cost before it is sent.

It reads recent prioritization fees, dry-runs probe transactions to measure
compute units, and groups pending instructions into cheaper batches.

Examples:
  feectl fees --speed fast
  feectl simulate --payer <address> --limit 200000 --price 5000
  feectl optimize --transfer 3 --token 2
  feectl report --payer <address> --memo 4 --simulate-batches
  feectl validate-limit 1400000`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTracing != nil {
			shutdownTracing(context.Background())
		}
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.solana-fee-lab/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.String(config.KeyNetwork, "", "network (mainnet-beta, testnet, devnet, localnet)")
	pf.String(config.KeyRPCEndpoint, "", "RPC endpoint (overrides the network preset)")
	pf.String(config.KeyWSEndpoint, "", "WebSocket endpoint")
	pf.Duration(config.KeyCallTimeout, 0, "per-call network timeout")
	pf.String(config.KeySQLitePath, "", "local history database, empty string disables it")
	pf.String(config.KeyOTLPEndpoint, "", "OTLP/HTTP trace collector (host:port)")

	for _, key := range []string{
		config.KeyNetwork, config.KeyRPCEndpoint, config.KeyWSEndpoint,
		config.KeyCallTimeout, config.KeySQLitePath, config.KeyOTLPEndpoint,
	} {
		bindFlag(v, rootCmd, key)
	}

	// Add subcommands
	rootCmd.AddCommand(feesCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(validateLimitCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(versionCmd)
}

func bindFlag(v *viper.Viper, c *cobra.Command, key string) {
	if err := v.BindPFlag(key, c.PersistentFlags().Lookup(key)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func initConfig(cmd *cobra.Command, args []string) error {
	setupColor(cmd.OutOrStdout())

	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	if verbose && cfg.FileUsed != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", cfg.FileUsed)
	}

	shutdownTracing, err = observability.InitTracing(cmd.Context(), "feectl", cfg.OTLPEndpoint)
	return err
}

func logger(prefix string) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "["+prefix+"] ", log.LstdFlags)
}

func newRPC() *solana.HTTPClient {
	return solana.NewHTTPClient(cfg.Cluster.RPC)
}

func newEstimator(rpc feestats.FeeSource) *feestats.Estimator {
	return feestats.NewEstimator(feestats.EstimatorOptions{
		Source: rpc,
		TTL:    cfg.FeeCacheTTL,
		Logger: logger("fees"),
	})
}

func newSimulator(rpc simulator.Network) *simulator.Simulator {
	return simulator.New(simulator.Options{
		Network:     rpc,
		CallTimeout: cfg.CallTimeout,
		Logger:      logger("simulator"),
	})
}

func newCatalog() *batch.Catalog {
	return batch.NewCatalog(cfg.UnitEstimates)
}

// openHistory opens the local history database, or returns nil when disabled.
func openHistory(ctx context.Context) (*sqlite.DB, error) {
	if cfg.SQLitePath == "" {
		return nil, nil
	}
	db, err := sqlite.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open local history: %w", err)
	}
	return db, nil
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "feectl version 0.1.0")
	},
}
