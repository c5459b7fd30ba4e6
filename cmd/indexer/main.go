package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"round-indexer/internal/engine"
	"round-indexer/internal/ingestion"
	"round-indexer/internal/observability"
	"round-indexer/internal/reducer"
	"round-indexer/internal/storage"
	chstore "round-indexer/internal/storage/clickhouse"
	"round-indexer/internal/storage/memory"
	"round-indexer/internal/storage/migrations"
	pgstore "round-indexer/internal/storage/postgres"
)

// indexerConfig holds flag-provided configuration for the indexer.
type indexerConfig struct {
	WSEndpoint    string
	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool
	MetricsAddr   string
	FlushInterval time.Duration
}

func main() {
	var cfg indexerConfig
	flag.StringVar(&cfg.WSEndpoint, "ws-endpoint", os.Getenv("FEED_WS_ENDPOINT"), "Event feed WebSocket endpoint")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	flag.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the event archive (empty to use in-memory archive)")
	flag.BoolVar(&cfg.UseMemory, "use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	flag.DurationVar(&cfg.FlushInterval, "flush-interval", 5*time.Second, "Event buffer flush interval")
	flag.Parse()

	logger := log.New(os.Stdout, "[indexer] ", log.LstdFlags|log.Lshortfile)

	// Start metrics server if enabled
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err := run(ctx, logger, cfg)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// run wires stores, reducers and the ingestion runner, then blocks until
// the context is cancelled.
func run(ctx context.Context, logger *log.Logger, cfg indexerConfig) error {
	if cfg.WSEndpoint == "" {
		return fmt.Errorf("--ws-endpoint is required")
	}
	if !cfg.UseMemory && cfg.PostgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create stores (use interfaces)
	var roundStore storage.RoundStore = memory.NewRoundStore()
	var investmentStore storage.InvestmentStore = memory.NewInvestmentStore()
	var withdrawalStore storage.WithdrawalStore = memory.NewWithdrawalStore()
	var claimStore storage.YieldClaimStore = memory.NewYieldClaimStore()
	var distributionStore storage.YieldDistributionStore = memory.NewYieldDistributionStore()
	var statsStore storage.PlatformStatsStore = memory.NewPlatformStatsStore()
	var archiveStore storage.EventArchiveStore = memory.NewEventArchiveStore()

	if !cfg.UseMemory {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}

		roundStore = pgstore.NewRoundStore(pool)
		investmentStore = pgstore.NewInvestmentStore(pool)
		withdrawalStore = pgstore.NewWithdrawalStore(pool)
		claimStore = pgstore.NewYieldClaimStore(pool)
		distributionStore = pgstore.NewYieldDistributionStore(pool)
		statsStore = pgstore.NewPlatformStatsStore(pool)
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}

		archiveStore = chstore.NewEventArchiveStore(conn)
	}

	// Create reducers
	roundReducer := reducer.NewRoundReducer(roundStore, logger)
	statsReducer := reducer.NewPlatformStatsReducer(statsStore, investmentStore, logger)
	ledgerReducer := reducer.NewLedgerReducer(reducer.LedgerReducerOptions{
		Investments:   investmentStore,
		Withdrawals:   withdrawalStore,
		Claims:        claimStore,
		Distributions: distributionStore,
		Rounds:        roundReducer,
		Stats:         statsReducer,
		Logger:        logger,
	})

	dispatcher := engine.NewDispatcher(engine.DispatcherOptions{
		Rounds:  roundReducer,
		Ledgers: ledgerReducer,
		Logger:  logger,
	})

	// Create event source
	source, err := ingestion.NewWSEventSource(ctx, cfg.WSEndpoint, nil, logger)
	if err != nil {
		return fmt.Errorf("create websocket source: %w", err)
	}
	defer source.Close()

	// Create and run runner
	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:        source,
		Dispatcher:    dispatcher,
		Archive:       archiveStore,
		FlushInterval: cfg.FlushInterval,
		Logger:        logger,
	})

	logger.Println("Starting live indexing...")
	return runner.Run(ctx)
}
