package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/crossbt/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestLoad_FromFile(t *testing.T) {
	cfgPath := writeConfig(t, `
data:
  dir: "/tmp/crossbt/data"
  month: "2025-03"
  top_n: 20

strategy:
  name: sma_crossover
  params:
    short_window: 20
    long_window: 80

results:
  storage: s3
  s3:
    bucket: backtests
    region: us-east-1
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Data.Dir != "/tmp/crossbt/data" {
		t.Errorf("expected data dir from file, got %s", cfg.Data.Dir)
	}
	if cfg.Data.TopN != 20 {
		t.Errorf("expected top_n 20, got %d", cfg.Data.TopN)
	}
	if cfg.Data.Interval != "1m" {
		t.Errorf("expected default interval 1m, got %s", cfg.Data.Interval)
	}
	if cfg.Strategy.Params["short_window"] != 20 {
		t.Errorf("expected short_window 20, got %v", cfg.Strategy.Params["short_window"])
	}
	if _, ok := cfg.Strategy.Params["volatility_window"]; ok {
		t.Error("unset params should be left to the strategy defaults")
	}
	if cfg.Results.Storage != "s3" || cfg.Results.S3.Bucket != "backtests" {
		t.Errorf("unexpected results config: %+v", cfg.Results)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if cfg.Data.QuoteAsset != "BTC" {
		t.Errorf("expected default quote asset BTC, got %s", cfg.Data.QuoteAsset)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_S3_SECRET", "s3cr3t")
	cfgPath := writeConfig(t, `
results:
  s3:
    secret_key: "${TEST_S3_SECRET}"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Results.S3.SecretKey != "s3cr3t" {
		t.Errorf("expected expanded secret, got %q", cfg.Results.S3.SecretKey)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CROSSBT_DATA_QUOTE_ASSET", "ETH")
	t.Setenv("CROSSBT_DATA_TIMEOUT", "5s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Data.QuoteAsset != "ETH" {
		t.Errorf("expected env override ETH, got %s", cfg.Data.QuoteAsset)
	}
	if cfg.Data.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %s", cfg.Data.Timeout)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Data.Interval != "1m" {
		t.Errorf("expected default interval 1m, got %s", cfg.Data.Interval)
	}
	if cfg.Data.TopN != 100 {
		t.Errorf("expected default top_n 100, got %d", cfg.Data.TopN)
	}
	if cfg.Results.Dir != "results" {
		t.Errorf("expected default results dir, got %s", cfg.Results.Dir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"valid config", func(c *Config) {}, nil},
		{"bad interval", func(c *Config) { c.Data.Interval = "7m" }, core.ErrConfigInvalid},
		{"bad month", func(c *Config) { c.Data.Month = "2025-13" }, core.ErrConfigInvalid},
		{"missing quote asset", func(c *Config) { c.Data.QuoteAsset = "" }, core.ErrConfigMissing},
		{"zero top_n", func(c *Config) { c.Data.TopN = 0 }, core.ErrConfigInvalid},
		{"negative retries", func(c *Config) { c.Data.MaxRetries = -1 }, core.ErrConfigInvalid},
		{"no strategy", func(c *Config) { c.Strategy.Name = "" }, core.ErrConfigMissing},
		{"zero workers", func(c *Config) { c.Backtest.Workers = 0 }, core.ErrConfigInvalid},
		{"s3 without bucket", func(c *Config) { c.Results.Storage = "s3" }, core.ErrConfigMissing},
		{"unknown storage", func(c *Config) { c.Results.Storage = "ftp" }, core.ErrConfigInvalid},
		{"metrics without textfile", func(c *Config) { c.Metrics.Enabled = true }, core.ErrConfigMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}
