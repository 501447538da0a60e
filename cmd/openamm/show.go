package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"openamm/internal/config"
	"openamm/internal/crank"
	"openamm/internal/model"
	"openamm/internal/storage"
)

func runShow(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadShow(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addresses, err := crank.ParseAddresses(cfg.Pools)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, _, closeStore, err := openPoolStore(ctx, cfg.PGDSN, cfg.StoreDir)
	if err != nil {
		return err
	}
	defer closeStore()

	var pools []model.Pool
	if len(addresses) == 0 {
		files, ok := store.(*storage.FileStore)
		if !ok {
			return fmt.Errorf("pool list is required with pg-dsn")
		}
		if pools, err = files.ListPools(ctx); err != nil {
			return err
		}
	}
	for _, addr := range addresses {
		p, ok, err := store.GetPool(ctx, addr)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("pool not found: %s", addr.Hex())
		}
		pools = append(pools, p)
	}

	for i, p := range pools {
		if i > 0 {
			fmt.Fprintln(os.Stdout)
		}
		if err := printPool(os.Stdout, p); err != nil {
			return err
		}
	}
	return nil
}

func printPool(out io.Writer, p model.Pool) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	row := func(key, value string) { fmt.Fprintf(w, "%s\t%s\n", key, value) }

	row("pool", p.Address.Hex())
	row("market", fmt.Sprintf("%s (%s)", p.Market, p.CurveKind))
	row("state", p.State().String())
	row("sequence", fmt.Sprintf("%d", p.Sequence))
	row("base", fmt.Sprintf("%s %s", formatAmount(p.BaseAmount, p.BaseDecimals), p.BaseAsset))
	row("quote", fmt.Sprintf("%s %s", formatAmount(p.QuoteAmount, p.QuoteDecimals), p.QuoteAsset))
	row("lp supply", fmt.Sprintf("%d", p.LPSupply))
	row("pending refund", fmt.Sprintf("%s %s / %s %s",
		formatAmount(p.RefundBaseAmount, p.BaseDecimals), p.BaseAsset,
		formatAmount(p.RefundQuoteAmount, p.QuoteDecimals), p.QuoteAsset))
	row("volume", fmt.Sprintf("%s %s / %s %s",
		formatAmount(p.CumulativeBaseVolume, p.BaseDecimals), p.BaseAsset,
		formatAmount(p.CumulativeQuoteVolume, p.QuoteDecimals), p.QuoteAsset))
	row("orders", fmt.Sprintf("%d asks, %d bids", len(p.PlacedAsks), len(p.PlacedBids)))
	if err := w.Flush(); err != nil {
		return err
	}

	placed := model.Ladder{Asks: levels(p.PlacedAsks), Bids: levels(p.PlacedBids)}
	if placed.Levels() == 0 {
		return nil
	}
	fmt.Fprintln(out)
	return printLadder(out, config.MarketConfig{
		ID:            p.Market,
		BaseAsset:     string(p.BaseAsset),
		QuoteAsset:    string(p.QuoteAsset),
		BaseDecimals:  p.BaseDecimals,
		QuoteDecimals: p.QuoteDecimals,
		BaseLotSize:   p.BaseLotSize,
		QuoteLotSize:  p.QuoteLotSize,
	}, placed)
}

func levels(placed []model.PlacedOrder) []model.Level {
	out := make([]model.Level, 0, len(placed))
	for _, po := range placed {
		out = append(out, model.Level{Price: po.Price, BaseLots: po.BaseLots, MaxQuote: po.MaxQuote})
	}
	return out
}
