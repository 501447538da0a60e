package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"openamm/internal/config"
	"openamm/internal/curve"
	"openamm/internal/ladder"
	"openamm/internal/model"
	"openamm/internal/safemath"
)

func runLadder(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadLadder(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Base == 0 || cfg.Quote == 0 {
		return fmt.Errorf("base and quote reserves are required")
	}
	kind, err := model.ParseCurveKind(cfg.Curve)
	if err != nil {
		return err
	}
	c, err := curve.New(kind, cfg.Market.BaseDecimals, cfg.Market.QuoteDecimals)
	if err != nil {
		return err
	}

	l, err := ladder.Build(c, curve.Reserves{Base: cfg.Base, Quote: cfg.Quote}, ladder.Params{
		BaseLotSize:  cfg.Market.BaseLotSize,
		QuoteLotSize: cfg.Market.QuoteLotSize,
		FeeBps:       curve.FeeBps(kind),
		MinBaseLots:  cfg.MinBaseLots,
		BestBid:      cfg.BestBid,
		BestAsk:      cfg.BestAsk,
	})
	if err != nil {
		return fmt.Errorf("build ladder: %w", err)
	}

	logger.Debug("ladder built",
		zap.String("market", cfg.Market.ID),
		zap.Stringer("curve", kind),
		zap.Int("asks", len(l.Asks)),
		zap.Int("bids", len(l.Bids)),
	)
	if err := printLadder(os.Stdout, cfg.Market, l); err != nil {
		return err
	}
	if cfg.Price == 0 {
		return nil
	}
	fmt.Fprintln(os.Stdout)
	return printDepth(os.Stdout, c, curve.Reserves{Base: cfg.Base, Quote: cfg.Quote}, cfg.Market, cfg.Price)
}

// printDepth reports how much the curve trades on each side before its
// average price passes price, given in quote lots per base lot.
func printDepth(out io.Writer, c curve.Curve, r curve.Reserves, market config.MarketConfig, price uint64) error {
	if market.BaseLotSize == 0 {
		return fmt.Errorf("base lot size is required")
	}
	num, err := safemath.Mul(price, market.QuoteLotSize)
	if err != nil {
		return fmt.Errorf("price %d: %w", price, err)
	}
	asks, err := curve.SizeAtPrice(c, r, model.Ask, num, market.BaseLotSize)
	if err != nil {
		return fmt.Errorf("ask depth: %w", err)
	}
	bids, err := curve.SizeAtPrice(c, r, model.Bid, num, market.BaseLotSize)
	if err != nil {
		return fmt.Errorf("bid depth: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	label := formatPrice(price, market.BaseLotSize, market.QuoteLotSize, market.BaseDecimals, market.QuoteDecimals)
	fmt.Fprintln(w, "SIDE\tPRICE\tDEPTH")
	fmt.Fprintf(w, "ask\t%s\t%s %s\n", label, formatAmount(asks, market.BaseDecimals), market.BaseAsset)
	fmt.Fprintf(w, "bid\t%s\t%s %s\n", label, formatAmount(bids, market.QuoteDecimals), market.QuoteAsset)
	return w.Flush()
}

func printLadder(out io.Writer, market config.MarketConfig, l model.Ladder) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SIDE\tPRICE\tLOTS\tSIZE\tTICKS")
	for i := len(l.Asks) - 1; i >= 0; i-- {
		writeLevel(w, "ask", market, l.Asks[i])
	}
	for _, lvl := range l.Bids {
		writeLevel(w, "bid", market, lvl)
	}
	return w.Flush()
}

func writeLevel(w io.Writer, side string, market config.MarketConfig, lvl model.Level) {
	fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\n",
		side,
		formatPrice(lvl.Price, market.BaseLotSize, market.QuoteLotSize, market.BaseDecimals, market.QuoteDecimals),
		lvl.BaseLots,
		formatAmount(lvl.BaseLots*market.BaseLotSize, market.BaseDecimals),
		lvl.Price,
	)
}
