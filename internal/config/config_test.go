package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadIndexFlagsAndEnv(t *testing.T) {
	t.Setenv("FARMSCOPE_RPC", "http://localhost:8545")
	t.Setenv("FARMSCOPE_BATCH_SIZE", "50")

	flags := pflag.NewFlagSet("index", pflag.ContinueOnError)
	flags.String("address", "", "")
	if err := flags.Parse([]string{"--address", " 0xabc , ,0xdef"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadIndex("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://localhost:8545" {
		t.Fatalf("rpc: %q", cfg.RPCURL)
	}
	if cfg.BatchSize != 50 {
		t.Fatalf("batch size: %d", cfg.BatchSize)
	}
	if len(cfg.Addresses) != 2 || cfg.Addresses[0] != "0xabc" || cfg.Addresses[1] != "0xdef" {
		t.Fatalf("addresses: %#v", cfg.Addresses)
	}
	if cfg.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("retry backoff: %s", cfg.RetryBackoff)
	}
	if !cfg.CheckpointEnabled {
		t.Fatalf("checkpoint should default to enabled")
	}
}

func TestLoadSimulateConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "farmscope.yaml")
	body := "scenario: ./scenarios/basic.yaml\nchain-id: 43114\nmetrics-addr: \":9102\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadSimulate(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scenario != "./scenarios/basic.yaml" || cfg.ChainID != 43114 || cfg.MetricsAddr != ":9102" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Out != "./data/logs.jsonl" {
		t.Fatalf("default out: %q", cfg.Out)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := LoadDecode(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestParseStringMap(t *testing.T) {
	got := parseStringMap("0x01=Staked, bad ,0x02 = Withdrawn,=x")
	if len(got) != 2 || got["0x01"] != "Staked" || got["0x02"] != "Withdrawn" {
		t.Fatalf("unexpected map: %#v", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]uint64{
		"":                     0,
		"1700000000":           1_700_000_000,
		"2023-11-14T22:13:20Z": 1_700_000_000,
	}
	for input, want := range cases {
		got, err := ParseTimestamp(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %d want %d", input, got, want)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}
