package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/crossbt/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Results  ResultsConfig  `mapstructure:"results"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Development bool     `mapstructure:"development"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// DataConfig holds market data acquisition settings.
type DataConfig struct {
	Dir            string        `mapstructure:"dir"`
	Dataset        string        `mapstructure:"dataset"` // Parquet cache name, without extension
	Interval       string        `mapstructure:"interval"`
	Month          string        `mapstructure:"month"` // YYYY-MM
	QuoteAsset     string        `mapstructure:"quote_asset"`
	TopN           int           `mapstructure:"top_n"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
	ArchiveBaseURL string        `mapstructure:"archive_base_url"`
	MaxRetries     int           `mapstructure:"max_retries"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type StrategyConfig struct {
	Name   string         `mapstructure:"name"`
	Params map[string]any `mapstructure:"params"`
}

type BacktestConfig struct {
	Workers int `mapstructure:"workers"`
}

// ResultsConfig holds report and run history settings.
type ResultsConfig struct {
	Storage     string   `mapstructure:"storage"` // "localfs" or "s3"
	Dir         string   `mapstructure:"dir"`     // For localfs
	S3          S3Config `mapstructure:"s3"`      // For S3
	HistoryDSN  string   `mapstructure:"history_dsn"`
	HistorySize int      `mapstructure:"history_size"` // in-memory history when no DSN is set
	Chart       bool     `mapstructure:"chart"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

var envRef = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// Load reads configuration from file on top of Defaults. An empty path
// returns the defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Support environment variable overrides
	v.SetEnvPrefix("CROSSBT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := Defaults()
	registerKeys(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		if m := envRef.FindStringSubmatch(v.GetString(key)); m != nil {
			v.Set(key, os.Getenv(m[1]))
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// registerKeys seeds viper with the defaults so AutomaticEnv can see every
// key even when the file omits it.
func registerKeys(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("data.dir", cfg.Data.Dir)
	v.SetDefault("data.dataset", cfg.Data.Dataset)
	v.SetDefault("data.interval", cfg.Data.Interval)
	v.SetDefault("data.month", cfg.Data.Month)
	v.SetDefault("data.quote_asset", cfg.Data.QuoteAsset)
	v.SetDefault("data.top_n", cfg.Data.TopN)
	v.SetDefault("data.api_base_url", cfg.Data.APIBaseURL)
	v.SetDefault("data.archive_base_url", cfg.Data.ArchiveBaseURL)
	v.SetDefault("data.max_retries", cfg.Data.MaxRetries)
	v.SetDefault("data.timeout", cfg.Data.Timeout)
	v.SetDefault("strategy.name", cfg.Strategy.Name)
	v.SetDefault("backtest.workers", cfg.Backtest.Workers)
	v.SetDefault("results.storage", cfg.Results.Storage)
	v.SetDefault("results.dir", cfg.Results.Dir)
	v.SetDefault("results.history_dsn", cfg.Results.HistoryDSN)
	v.SetDefault("results.history_size", cfg.Results.HistorySize)
	v.SetDefault("results.chart", cfg.Results.Chart)
	v.SetDefault("results.s3.access_key", "")
	v.SetDefault("results.s3.secret_key", "")
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.textfile", cfg.Metrics.Textfile)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Data: DataConfig{
			Dir:            "data",
			Dataset:        "btc_1m_feb25",
			Interval:       "1m",
			Month:          "2025-02",
			QuoteAsset:     "BTC",
			TopN:           100,
			APIBaseURL:     "https://api.binance.com",
			ArchiveBaseURL: "https://data.binance.vision/data/spot/monthly/klines/",
			MaxRetries:     3,
			Timeout:        60 * time.Second,
		},
		// Params left empty: each strategy factory starts from its own
		// defaults (50/200/30 for sma_crossover).
		Strategy: StrategyConfig{
			Name: "sma_crossover",
		},
		Backtest: BacktestConfig{
			Workers: 4,
		},
		Results: ResultsConfig{
			Storage:     "localfs",
			Dir:         "results",
			HistorySize: 1000,
			Chart:       true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

var intervals = map[string]bool{
	"1s": true, "1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true, "1mo": true,
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Data validation
	if c.Data.Dir == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.dir is required"))
	}
	if !intervals[c.Data.Interval] {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unsupported interval %q", c.Data.Interval))
	}
	if _, err := time.Parse("2006-01", c.Data.Month); err != nil {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("month must be YYYY-MM, got %q", c.Data.Month))
	}
	if c.Data.QuoteAsset == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.quote_asset is required"))
	}
	if c.Data.TopN < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("top_n must be positive, got %d", c.Data.TopN))
	}
	if c.Data.MaxRetries < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_retries cannot be negative, got %d", c.Data.MaxRetries))
	}

	if c.Strategy.Name == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("strategy.name is required"))
	}
	if c.Backtest.Workers < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("workers must be positive, got %d", c.Backtest.Workers))
	}

	// Results storage validation
	switch c.Results.Storage {
	case "localfs":
		if c.Results.Dir == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("results.dir required when storage is localfs"))
		}
	case "s3":
		if c.Results.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("results.s3.bucket required when storage is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown results storage %q", c.Results.Storage))
	}

	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("metrics.textfile required when metrics are enabled"))
	}

	return nil
}
