package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"round-indexer/internal/engine"
	"round-indexer/internal/ingestion"
	"round-indexer/internal/reducer"
	chstore "round-indexer/internal/storage/clickhouse"
	"round-indexer/internal/storage/migrations"
	pgstore "round-indexer/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the event archive")
	fromTime := flag.String("from-time", "", "Start of replay range (RFC3339, default: 24h ago)")
	toTime := flag.String("to-time", "", "End of replay range (RFC3339, exclusive, default: now)")
	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags|log.Lshortfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, stopping replay...", sig)
		cancel()
	}()

	if err := run(ctx, logger, *postgresDSN, *clickhouseDSN, *fromTime, *toTime); err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, postgresDSN, clickhouseDSN, fromTimeStr, toTimeStr string) error {
	if postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required")
	}
	if clickhouseDSN == "" {
		return fmt.Errorf("--clickhouse-dsn is required")
	}

	from, to, err := parseTimeRange(fromTimeStr, toTimeStr)
	if err != nil {
		return err
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("run postgres migrations: %w", err)
	}

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		return fmt.Errorf("connect to clickhouse: %w", err)
	}
	defer conn.Close()

	// Create reducers over the materialized store
	investmentStore := pgstore.NewInvestmentStore(pool)
	roundReducer := reducer.NewRoundReducer(pgstore.NewRoundStore(pool), logger)
	statsReducer := reducer.NewPlatformStatsReducer(pgstore.NewPlatformStatsStore(pool), investmentStore, logger)
	ledgerReducer := reducer.NewLedgerReducer(reducer.LedgerReducerOptions{
		Investments:   investmentStore,
		Withdrawals:   pgstore.NewWithdrawalStore(pool),
		Claims:        pgstore.NewYieldClaimStore(pool),
		Distributions: pgstore.NewYieldDistributionStore(pool),
		Rounds:        roundReducer,
		Stats:         statsReducer,
		Logger:        logger,
	})

	dispatcher := engine.NewDispatcher(engine.DispatcherOptions{
		Rounds:  roundReducer,
		Ledgers: ledgerReducer,
		Logger:  logger,
	})

	replayer := ingestion.NewReplayer(ingestion.ReplayerOptions{
		Archive:    chstore.NewEventArchiveStore(conn),
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	result, err := replayer.Replay(ctx, from, to)
	if err != nil {
		return err
	}

	logger.Printf("Replay finished: %d events applied, %d skipped in %v",
		result.EventsProcessed, result.EventsSkipped, result.Duration)
	return nil
}

// parseTimeRange resolves the replay window from RFC3339 flags.
// Defaults to the last 24 hours.
func parseTimeRange(fromStr, toStr string) (int64, int64, error) {
	var from, to int64

	if fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return 0, 0, fmt.Errorf("parse from-time: %w", err)
		}
		from = t.Unix()
	} else {
		from = time.Now().Add(-24 * time.Hour).Unix()
	}

	if toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return 0, 0, fmt.Errorf("parse to-time: %w", err)
		}
		to = t.Unix()
	} else {
		to = time.Now().Unix()
	}

	if to <= from {
		return 0, 0, fmt.Errorf("to-time must be after from-time")
	}

	return from, to, nil
}
