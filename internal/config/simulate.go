package config

import (
	"github.com/spf13/pflag"
)

// SimulateConfig holds configuration for the simulate command. A zero
// ChainID keeps the chain id of the scenario file.
type SimulateConfig struct {
	Scenario    string
	Out         string
	FarmsOut    string
	Report      string
	PGDSN       string
	MetricsAddr string
	ChainID     uint64
	LogLevel    string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":       "./data/logs.jsonl",
		"farms-out": "./data/farms.jsonl",
		"log-level": "info",
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		Scenario:    v.GetString("scenario"),
		Out:         v.GetString("out"),
		FarmsOut:    v.GetString("farms-out"),
		Report:      v.GetString("report"),
		PGDSN:       v.GetString("pg-dsn"),
		MetricsAddr: v.GetString("metrics-addr"),
		ChainID:     v.GetUint64("chain-id"),
		LogLevel:    v.GetString("log-level"),
	}
	return cfg, nil
}
