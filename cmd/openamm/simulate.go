package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"openamm/internal/clob"
	"openamm/internal/config"
	"openamm/internal/crank"
	"openamm/internal/ledger"
	"openamm/internal/metrics"
	"openamm/internal/model"
	"openamm/internal/pool"
	"openamm/internal/storage"
)

// takerFunding scales the seed amounts minted to the scripted taker.
const takerFunding = 10

func simAccount(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("openamm-sim:" + name)))
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.SeedBase == 0 || cfg.SeedQuote == 0 {
		return fmt.Errorf("seed-base and seed-quote are required")
	}
	kind, err := model.ParseCurveKind(cfg.Curve)
	if err != nil {
		return err
	}
	orders, err := config.ParseTakerOrders(cfg.Orders)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	market := model.Market{
		ID:            cfg.Market.ID,
		BaseAsset:     model.Asset(cfg.Market.BaseAsset),
		QuoteAsset:    model.Asset(cfg.Market.QuoteAsset),
		BaseDecimals:  cfg.Market.BaseDecimals,
		QuoteDecimals: cfg.Market.QuoteDecimals,
		BaseLotSize:   cfg.Market.BaseLotSize,
		QuoteLotSize:  cfg.Market.QuoteLotSize,
	}
	payer, taker, cranker := simAccount("payer"), simAccount("taker"), simAccount("cranker")

	led := ledger.NewMemory(logger)
	for _, mint := range []struct {
		asset  model.Asset
		to     common.Address
		amount uint64
	}{
		{market.BaseAsset, payer, cfg.SeedBase},
		{market.QuoteAsset, payer, cfg.SeedQuote},
		{market.BaseAsset, taker, cfg.SeedBase * takerFunding},
		{market.QuoteAsset, taker, cfg.SeedQuote * takerFunding},
	} {
		if err := led.Mint(ctx, mint.asset, mint.to, mint.amount); err != nil {
			return fmt.Errorf("fund %s: %w", mint.to.Hex(), err)
		}
	}

	book, err := clob.New(market, led, clob.Options{TakerFeeBps: cfg.TakerFeeBps, Logger: logger})
	if err != nil {
		return fmt.Errorf("open market: %w", err)
	}

	store, pg, closeStore, err := openPoolStore(ctx, cfg.PGDSN, cfg.StoreDir)
	if err != nil {
		return err
	}
	defer closeStore()

	journal := storage.MultiJournal{storage.NewJsonlJournal(cfg.Journal)}
	if pg != nil {
		journal = append(journal, pg)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(reg)
	server := metrics.NewServer(cfg.MetricsAddr, reg)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Warn("stop metrics server", zap.Error(err))
		}
	}()

	engine := pool.NewEngine(pool.Config{
		RefundBps:   cfg.RefundBps,
		MinBaseLots: cfg.MinBaseLots,
		Journal:     journal,
		Metrics:     recorder,
	}, store, led, book, logger)

	logger.Info("simulate start",
		zap.String("market", market.ID),
		zap.Stringer("curve", kind),
		zap.Uint64("seed_base", cfg.SeedBase),
		zap.Uint64("seed_quote", cfg.SeedQuote),
		zap.Int("orders", len(orders)),
		zap.String("store_dir", cfg.StoreDir),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("journal", cfg.Journal),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	created, err := engine.CreatePool(ctx, pool.CreateRequest{
		Kind:        kind,
		BaseAmount:  cfg.SeedBase,
		QuoteAmount: cfg.SeedQuote,
		Payer:       payer,
	})
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}

	runner := crank.NewRunner(crank.RunConfig{
		Pools:             []common.Address{created.Address},
		Cranker:           cranker,
		Interval:          cfg.Interval,
		Cycles:            cfg.Cycles,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
	}, engine, logger)

	for i, order := range orders {
		exec, err := book.Take(ctx, taker, order.Side, order.Price, order.Lots)
		if err != nil {
			return fmt.Errorf("order %d: %w", i, err)
		}
		logger.Info("taker order",
			zap.Int("index", i),
			zap.Stringer("side", order.Side),
			zap.Uint64("price", order.Price),
			zap.Uint64("lots", order.Lots),
			zap.Uint64("filled_lots", exec.FilledLots),
			zap.Uint64("base_settled", exec.BaseSettled),
			zap.Uint64("quote_settled", exec.QuoteSettled),
		)

		report, err := runner.RunOnce(ctx)
		if err != nil {
			return err
		}
		if (report.Paused > 0 || report.Skipped > 0) && cfg.AutoRestart {
			if _, err := engine.RestartMarketMaking(ctx, created.Address, false); err != nil {
				return fmt.Errorf("restart market making: %w", err)
			}
		}
	}

	if cfg.Cycles > 0 {
		if err := runner.Run(ctx); err != nil {
			return err
		}
	}

	final, err := engine.Pool(ctx, created.Address)
	if err != nil {
		return err
	}
	return printPool(os.Stdout, final)
}
