package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "OPENAMM"

// load merges config file, environment variables, and flags. Flags win over
// env, env over the file, the file over defaults.
func load(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// MarketConfig describes the simulated venue market.
type MarketConfig struct {
	ID            string
	BaseAsset     string
	QuoteAsset    string
	BaseDecimals  uint8
	QuoteDecimals uint8
	BaseLotSize   uint64
	QuoteLotSize  uint64
}

func marketDefaults(into map[string]any) {
	into["market"] = "SOL-USDC"
	into["base-asset"] = "SOL"
	into["quote-asset"] = "USDC"
	into["base-decimals"] = 9
	into["quote-decimals"] = 6
	into["base-lot-size"] = uint64(1_000_000)
	into["quote-lot-size"] = uint64(1)
}

func readMarket(v *viper.Viper) (MarketConfig, error) {
	baseDecimals, err := decimalsValue(v, "base-decimals")
	if err != nil {
		return MarketConfig{}, err
	}
	quoteDecimals, err := decimalsValue(v, "quote-decimals")
	if err != nil {
		return MarketConfig{}, err
	}
	return MarketConfig{
		ID:            v.GetString("market"),
		BaseAsset:     v.GetString("base-asset"),
		QuoteAsset:    v.GetString("quote-asset"),
		BaseDecimals:  baseDecimals,
		QuoteDecimals: quoteDecimals,
		BaseLotSize:   v.GetUint64("base-lot-size"),
		QuoteLotSize:  v.GetUint64("quote-lot-size"),
	}, nil
}

func decimalsValue(v *viper.Viper, key string) (uint8, error) {
	d := v.GetUint(key)
	if d > 18 {
		return 0, fmt.Errorf("%s must be at most 18, got %d", key, d)
	}
	return uint8(d), nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
