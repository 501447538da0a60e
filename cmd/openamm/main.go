package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"openamm/internal/storage"
	"openamm/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "openamm",
		Short:        "AMM liquidity expressed as a post-only order ladder",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	ladderCmd := &cobra.Command{
		Use:   "ladder",
		Short: "Print the ladder a pool would quote for given reserves",
		RunE:  runLadder,
	}

	addMarketFlags(ladderCmd)
	ladderCmd.Flags().String("curve", "xyk", "curve kind (xyk, stable)")
	ladderCmd.Flags().Uint64("base", 0, "base reserve in native units")
	ladderCmd.Flags().Uint64("quote", 0, "quote reserve in native units")
	ladderCmd.Flags().Uint64("best-bid", 0, "best external bid in quote lots per base lot, 0 for none")
	ladderCmd.Flags().Uint64("best-ask", 0, "best external ask in quote lots per base lot, 0 for none")
	ladderCmd.Flags().Uint64("min-base-lots", 1, "smallest order size in base lots")
	ladderCmd.Flags().Uint64("price", 0, "also print the curve depth at this price in quote lots per base lot")
	ladderCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(ladderCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a pool against the simulated venue and replay taker orders",
		RunE:  runSimulate,
	}

	addMarketFlags(simulateCmd)
	simulateCmd.Flags().Uint64("taker-fee-bps", 10, "venue taker fee in bps")
	simulateCmd.Flags().String("curve", "xyk", "curve kind (xyk, stable)")
	simulateCmd.Flags().Uint64("seed-base", 0, "initial base liquidity in native units")
	simulateCmd.Flags().Uint64("seed-quote", 0, "initial quote liquidity in native units")
	simulateCmd.Flags().StringSlice("order", nil, "taker orders side:lots:price (comma-separated)")
	simulateCmd.Flags().Uint64("refund-bps", 1, "share of filled volume paid to the cranker")
	simulateCmd.Flags().Uint64("min-base-lots", 1, "smallest ladder order in base lots")
	simulateCmd.Flags().Bool("auto-restart", true, "restart market making when a ladder side is swept")
	simulateCmd.Flags().String("store-dir", "./data/pools", "pool snapshot directory")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN; replaces the file store when set")
	simulateCmd.Flags().String("journal", "./data/pool_events.jsonl", "pool event JSONL path")
	simulateCmd.Flags().String("metrics-addr", "", "prometheus listen address, empty disables")
	simulateCmd.Flags().Uint64("cycles", 0, "extra crank cycles after the replay")
	simulateCmd.Flags().Duration("interval", time.Second, "delay between extra crank cycles")
	simulateCmd.Flags().Int("max-retries", 5, "maximum retry attempts on adapter failures")
	simulateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	simulateCmd.Flags().String("checkpoint", "./data/crank_checkpoint.json", "crank checkpoint path")
	simulateCmd.Flags().Bool("checkpoint-enabled", false, "enable crank checkpointing")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print stored pool snapshots",
		RunE:  runShow,
	}

	showCmd.Flags().String("store-dir", "./data/pools", "pool snapshot directory")
	showCmd.Flags().String("pg-dsn", "", "Postgres DSN; replaces the file store when set")
	showCmd.Flags().StringSlice("pool", nil, "pool addresses (comma-separated), empty lists the file store")
	showCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(showCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate the pool event journal into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "./data/pool_events.jsonl", "input pool events JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addMarketFlags(cmd *cobra.Command) {
	cmd.Flags().String("market", "SOL-USDC", "market id")
	cmd.Flags().String("base-asset", "SOL", "base asset symbol")
	cmd.Flags().String("quote-asset", "USDC", "quote asset symbol")
	cmd.Flags().Uint("base-decimals", 9, "base asset decimals")
	cmd.Flags().Uint("quote-decimals", 6, "quote asset decimals")
	cmd.Flags().Uint64("base-lot-size", 1_000_000, "base lot size in native units")
	cmd.Flags().Uint64("quote-lot-size", 1, "quote lot size in native units")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// openPoolStore returns the postgres store when dsn is set and the file store
// otherwise. The returned close func is never nil.
func openPoolStore(ctx context.Context, dsn, dir string) (storage.PoolStore, *postgres.Store, func(), error) {
	if dsn == "" {
		return storage.NewFileStore(dir), nil, func() {}, nil
	}
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, store, store.Close, nil
}

func formatAmount(value uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(value), -int32(decimals)).StringFixed(int32(decimals))
}

// formatPrice converts a price in quote lots per base lot to quote units per
// base unit.
func formatPrice(price, baseLot, quoteLot uint64, baseDecimals, quoteDecimals uint8) string {
	if baseLot == 0 {
		return "0"
	}
	lots := new(big.Int).Mul(new(big.Int).SetUint64(price), new(big.Int).SetUint64(quoteLot))
	quote := decimal.NewFromBigInt(lots, -int32(quoteDecimals))
	base := decimal.NewFromBigInt(new(big.Int).SetUint64(baseLot), -int32(baseDecimals))
	return quote.DivRound(base, int32(quoteDecimals)).String()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
