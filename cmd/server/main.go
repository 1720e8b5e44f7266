// Package main runs the fee lab service:
// - HTTP API: fee estimates, simulations, batch plans and reports
// - Fee monitor (continuous): refreshes and persists prioritization fees
// - Payer watcher (optional): records compute usage of landed transactions
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-fee-lab/internal/batch"
	"solana-fee-lab/internal/config"
	"solana-fee-lab/internal/feestats"
	"solana-fee-lab/internal/history"
	"solana-fee-lab/internal/observability"
	"solana-fee-lab/internal/orchestrator"
	"solana-fee-lab/internal/reporting"
	"solana-fee-lab/internal/simulator"
	"solana-fee-lab/internal/solana"
	"solana-fee-lab/internal/storage"
	chstore "solana-fee-lab/internal/storage/clickhouse"
	"solana-fee-lab/internal/storage/memory"
	"solana-fee-lab/internal/storage/migrations"
	pgstore "solana-fee-lab/internal/storage/postgres"
	"solana-fee-lab/internal/verification"
)

// stores holds all storage implementations.
type stores struct {
	simulations storage.SimulationStore
	exports     storage.PlanExportStore
	usage       storage.UsageStore
	progress    storage.SyncProgressStore
	feeSamples  storage.FeeSampleStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Config file and SFL_* variables provide flag defaults
	cfg, err := config.Load(config.New(), os.Getenv("SFL_CONFIG"))
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	network := flag.String("network", cfg.Network, "Solana network (mainnet-beta, testnet, devnet, localnet)")
	rpcEndpoint := flag.String("rpc-endpoint", cfg.RPCEndpoint, "Solana RPC HTTP endpoint (overrides the network preset)")
	wsEndpoint := flag.String("ws-endpoint", cfg.WSEndpoint, "Solana WebSocket endpoint (derived from --rpc-endpoint when empty)")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	addr := flag.String("metrics-addr", cfg.MetricsAddr, "HTTP address for the API, health and Prometheus metrics")
	otlpEndpoint := flag.String("otlp-endpoint", cfg.OTLPEndpoint, "OTLP/HTTP trace collector (host:port), empty to disable")
	callTimeout := flag.Duration("call-timeout", cfg.CallTimeout, "Per-call network timeout for simulations")
	feeCacheTTL := flag.Duration("fee-cache-ttl", cfg.FeeCacheTTL, "Fee estimate cache lifetime")
	monitorInterval := flag.Duration("monitor-interval", cfg.MonitorInterval, "Fee refresh interval")
	monitorAccounts := flag.String("monitor-accounts", "", "Comma-separated account filter refreshed in addition to global fees")
	watchPayer := flag.String("watch-payer", cfg.WatchPayer, "Payer whose landed transactions are recorded")

	flag.Parse()

	cluster, err := solana.Resolve(*network, *rpcEndpoint, *wsEndpoint)
	if err != nil {
		logger.Fatalf("Invalid network: %v", err)
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	if *watchPayer != "" {
		if err := solana.ValidateAddress(*watchPayer); err != nil {
			logger.Fatalf("Invalid --watch-payer: %v", err)
		}
	}
	logger.Printf("Network %s (rpc %s)", cluster.Name, cluster.RPC)

	// Shut down on first signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, "solana-fee-lab-server", *otlpEndpoint)
	if err != nil {
		logger.Fatalf("Failed to init tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	st, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	rpc := solana.NewHTTPClient(cluster.RPC)
	estimator := feestats.NewEstimator(feestats.EstimatorOptions{
		Source: rpc,
		Store:  st.feeSamples,
		TTL:    *feeCacheTTL,
		Logger: log.New(os.Stdout, "[fees] ", log.LstdFlags),
	})
	sim := simulator.New(simulator.Options{
		Network:     rpc,
		CallTimeout: *callTimeout,
		Logger:      log.New(os.Stdout, "[simulator] ", log.LstdFlags),
	})
	catalog := batch.NewCatalog(cfg.UnitEstimates)
	optimizer := batch.NewOptimizer(batch.DefaultConfig())

	filters := [][]string{nil}
	if accts := splitList(*monitorAccounts); len(accts) > 0 {
		filters = append(filters, accts)
	}
	monitor := orchestrator.NewFeeMonitor(orchestrator.MonitorOptions{
		Estimator: estimator,
		Filters:   filters,
		Interval:  *monitorInterval,
		Logger:    log.New(os.Stdout, "[monitor] ", log.LstdFlags),
	})

	api := &API{
		network:    cluster.Name,
		watchPayer: *watchPayer,
		estimator:  estimator,
		simulator:  sim,
		optimizer:  optimizer,
		catalog:    catalog,
		planner: orchestrator.NewPlanner(orchestrator.PlannerOptions{
			Estimator:   estimator,
			Simulator:   sim,
			Optimizer:   optimizer,
			Simulations: st.simulations,
			Exports:     st.exports,
			Logger:      log.New(os.Stdout, "[planner] ", log.LstdFlags),
		}),
		monitor:     monitor,
		reports:     reporting.NewGenerator(st.simulations, st.usage),
		simulations: st.simulations,
		verifier: verification.NewVerifier(verification.Options{
			Exports:     st.exports,
			Simulations: st.simulations,
		}),
		now:     time.Now,
		started: time.Now(),
		logger:  logger,
	}

	reader := history.NewReader(history.Options{
		Source:   rpc,
		Usage:    st.usage,
		Progress: st.progress,
		Logger:   log.New(os.Stdout, "[history] ", log.LstdFlags),
	})

	if err := run(ctx, logger, *addr, api, monitor, reader, cluster.WS, *watchPayer); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// run serves HTTP and runs the background components until ctx is done
// or one of them fails.
func run(ctx context.Context, logger *log.Logger, addr string, api *API, monitor *orchestrator.FeeMonitor, reader *history.Reader, wsEndpoint, watchPayer string) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{Addr: addr, Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second}
	g.Go(func() error {
		logger.Printf("Starting HTTP server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return monitor.Run(ctx)
	})

	if watchPayer != "" {
		g.Go(func() error {
			return watch(ctx, logger, reader, wsEndpoint, watchPayer)
		})
	}

	return g.Wait()
}

// watch backfills recent history, then records new transactions live.
func watch(ctx context.Context, logger *log.Logger, reader *history.Reader, wsEndpoint, payer string) error {
	n, err := reader.Sync(ctx, payer, 0)
	if err != nil {
		logger.Printf("History backfill for %s failed: %v", payer, err)
	} else {
		logger.Printf("Backfilled %d transactions for %s", n, payer)
	}

	ws, err := solana.NewWSClient(ctx, wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	return history.NewWatcher(ws, reader, payer).Run(ctx)
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*stores, func(), error) {
	if useMemory {
		st := &stores{
			simulations: memory.NewSimulationStore(),
			exports:     memory.NewPlanExportStore(),
			usage:       memory.NewUsageStore(),
			progress:    memory.NewSyncProgressStore(),
			feeSamples:  memory.NewFeeSampleStore(),
		}
		return st, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	st := &stores{
		// PostgreSQL stores (simulations, plans, usage)
		simulations: pgstore.NewSimulationStore(pool),
		exports:     pgstore.NewPlanExportStore(pool),
		usage:       pgstore.NewUsageStore(pool),
		progress:    pgstore.NewSyncProgressStore(pool),

		// ClickHouse stores (fee samples)
		feeSamples: chstore.NewFeeSampleStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return st, cleanup, nil
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
