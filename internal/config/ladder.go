package config

import (
	"github.com/spf13/pflag"
)

// LadderConfig holds configuration for the ladder command.
type LadderConfig struct {
	Market      MarketConfig
	Curve       string
	Base        uint64
	Quote       uint64
	BestBid     uint64
	BestAsk     uint64
	MinBaseLots uint64
	Price       uint64
	LogLevel    string
}

// LoadLadder merges config file, environment variables, and flags into LadderConfig.
func LoadLadder(cfgFile string, flags *pflag.FlagSet) (LadderConfig, error) {
	defaults := map[string]any{
		"curve":         "xyk",
		"min-base-lots": uint64(1),
		"log-level":     "info",
	}
	marketDefaults(defaults)

	v, err := load(cfgFile, flags, defaults)
	if err != nil {
		return LadderConfig{}, err
	}
	market, err := readMarket(v)
	if err != nil {
		return LadderConfig{}, err
	}

	return LadderConfig{
		Market:      market,
		Curve:       v.GetString("curve"),
		Base:        v.GetUint64("base"),
		Quote:       v.GetUint64("quote"),
		BestBid:     v.GetUint64("best-bid"),
		BestAsk:     v.GetUint64("best-ask"),
		MinBaseLots: v.GetUint64("min-base-lots"),
		Price:       v.GetUint64("price"),
		LogLevel:    v.GetString("log-level"),
	}, nil
}
