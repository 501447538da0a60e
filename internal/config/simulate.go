package config

import (
	"time"

	"github.com/spf13/pflag"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Market            MarketConfig
	TakerFeeBps       uint64
	Curve             string
	SeedBase          uint64
	SeedQuote         uint64
	Orders            []string
	RefundBps         uint64
	MinBaseLots       uint64
	AutoRestart       bool
	StoreDir          string
	PGDSN             string
	Journal           string
	MetricsAddr       string
	Cycles            uint64
	Interval          time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	Checkpoint        string
	CheckpointEnabled bool
	LogLevel          string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	defaults := map[string]any{
		"taker-fee-bps":      uint64(10),
		"curve":              "xyk",
		"refund-bps":         uint64(1),
		"min-base-lots":      uint64(1),
		"auto-restart":       true,
		"store-dir":          "./data/pools",
		"journal":            "./data/pool_events.jsonl",
		"interval":           time.Second,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"checkpoint":         "./data/crank_checkpoint.json",
		"checkpoint-enabled": false,
		"log-level":          "info",
	}
	marketDefaults(defaults)

	v, err := load(cfgFile, flags, defaults)
	if err != nil {
		return SimulateConfig{}, err
	}
	market, err := readMarket(v)
	if err != nil {
		return SimulateConfig{}, err
	}

	return SimulateConfig{
		Market:            market,
		TakerFeeBps:       v.GetUint64("taker-fee-bps"),
		Curve:             v.GetString("curve"),
		SeedBase:          v.GetUint64("seed-base"),
		SeedQuote:         v.GetUint64("seed-quote"),
		Orders:            getStringSlice(v, "order"),
		RefundBps:         v.GetUint64("refund-bps"),
		MinBaseLots:       v.GetUint64("min-base-lots"),
		AutoRestart:       v.GetBool("auto-restart"),
		StoreDir:          v.GetString("store-dir"),
		PGDSN:             v.GetString("pg-dsn"),
		Journal:           v.GetString("journal"),
		MetricsAddr:       v.GetString("metrics-addr"),
		Cycles:            v.GetUint64("cycles"),
		Interval:          v.GetDuration("interval"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}
