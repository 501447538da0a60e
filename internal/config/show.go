package config

import "github.com/spf13/pflag"

// ShowConfig holds configuration for the show command.
type ShowConfig struct {
	StoreDir string
	PGDSN    string
	Pools    []string
	LogLevel string
}

// LoadShow merges config file, environment variables, and flags into ShowConfig.
func LoadShow(cfgFile string, flags *pflag.FlagSet) (ShowConfig, error) {
	v, err := load(cfgFile, flags, map[string]any{
		"store-dir": "./data/pools",
		"log-level": "info",
	})
	if err != nil {
		return ShowConfig{}, err
	}

	return ShowConfig{
		StoreDir: v.GetString("store-dir"),
		PGDSN:    v.GetString("pg-dsn"),
		Pools:    getStringSlice(v, "pool"),
		LogLevel: v.GetString("log-level"),
	}, nil
}
