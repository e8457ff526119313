// Package app wires configuration, data sources, strategies, the backtest
// runner and persistence into the operations the CLI exposes.
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/crossbt/internal/backtest"
	"github.com/newthinker/crossbt/internal/collector"
	"github.com/newthinker/crossbt/internal/collector/binance"
	"github.com/newthinker/crossbt/internal/config"
	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/dataset"
	"github.com/newthinker/crossbt/internal/metrics"
	"github.com/newthinker/crossbt/internal/report"
	"github.com/newthinker/crossbt/internal/storage/archive"
	"github.com/newthinker/crossbt/internal/storage/run"
	"github.com/newthinker/crossbt/internal/strategy"
	"github.com/newthinker/crossbt/internal/strategy/ema_crossover"
	"github.com/newthinker/crossbt/internal/strategy/sma_crossover"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultSource is the market data source used by Download and FetchSeries.
const DefaultSource = "binance"

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Registry
	collectors *collector.Registry
	strategies *strategy.Registry
	runner     *backtest.Runner
	loader     *dataset.Loader
	reports    *report.Writer
	history    run.Store
	archive    collector.Archive
}

// Option overrides a collaborator, mostly for tests.
type Option func(*App)

// WithMarketData registers an additional market data source.
func WithMarketData(m collector.MarketData) Option {
	return func(a *App) { a.collectors.Register(m) }
}

// WithArchive replaces the monthly archive downloader.
func WithArchive(ar collector.Archive) Option {
	return func(a *App) { a.archive = ar }
}

// WithHistory replaces the run history store.
func WithHistory(s run.Store) Option {
	return func(a *App) { a.history = s }
}

// WithStorage replaces the report storage backend.
func WithStorage(s archive.Storage) Option {
	return func(a *App) { a.reports = report.NewWriter(s, a.cfg.Results.Chart, a.logger) }
}

// DefaultStrategies returns a registry holding every built-in strategy.
func DefaultStrategies(logger *zap.Logger) *strategy.Registry {
	r := strategy.NewRegistry(logger)
	r.Register("sma_crossover", sma_crossover.Factory)
	r.Register("ema_crossover", ema_crossover.Factory)
	return r
}

// New creates a new App from a validated config. logger may be nil.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := metrics.NewRegistry()
	httpClient := reg.Client(cfg.Data.Timeout, logger)

	a := &App{
		cfg:        cfg,
		logger:     logger,
		metrics:    reg,
		collectors: collector.NewRegistry(),
		strategies: DefaultStrategies(logger),
		runner:     backtest.NewRunner(reg, logger),
		loader:     dataset.NewLoader(logger),
	}

	a.collectors.Register(binance.New(
		binance.WithBaseURL(cfg.Data.APIBaseURL),
		binance.WithHTTPClient(httpClient),
		binance.WithLogger(logger),
	))

	for _, opt := range opts {
		opt(a)
	}

	if a.archive == nil {
		dl, err := binance.NewArchiveDownloader(binance.ArchiveConfig{
			BaseURL:    cfg.Data.ArchiveBaseURL,
			Dir:        cfg.Data.Dir,
			MaxRetries: cfg.Data.MaxRetries,
		}, httpClient, reg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating archive downloader: %w", err)
		}
		a.archive = dl
	}

	if a.reports == nil {
		store, err := archive.Open(archive.Config{
			Type: cfg.Results.Storage,
			Path: cfg.Results.Dir,
			S3: archive.S3Config{
				Bucket:    cfg.Results.S3.Bucket,
				Endpoint:  cfg.Results.S3.Endpoint,
				Region:    cfg.Results.S3.Region,
				AccessKey: cfg.Results.S3.AccessKey,
				SecretKey: cfg.Results.S3.SecretKey,
				Prefix:    cfg.Results.S3.Prefix,
			},
		})
		if err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		a.reports = report.NewWriter(store, cfg.Results.Chart, logger)
	}

	if a.history == nil {
		if cfg.Results.HistoryDSN != "" {
			s, err := run.NewSQLiteStore(cfg.Results.HistoryDSN)
			if err != nil {
				return nil, err
			}
			a.history = s
		} else {
			a.history = run.NewMemoryStore(cfg.Results.HistorySize)
		}
	}

	return a, nil
}

// Close releases the history store.
func (a *App) Close() error {
	return a.history.Close()
}

// Metrics returns the application metrics registry.
func (a *App) Metrics() *metrics.Registry { return a.metrics }

// History returns the run history store.
func (a *App) History() run.Store { return a.history }

// Strategies returns the strategy registry.
func (a *App) Strategies() *strategy.Registry { return a.strategies }

// WriteMetrics exports the registry to the configured textfile. It is a
// no-op when metrics are disabled.
func (a *App) WriteMetrics() error {
	if !a.cfg.Metrics.Enabled {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	a.logger.Debug("metrics written", zap.String("path", a.cfg.Metrics.Textfile))
	return nil
}

// Outcome is the result of one symbol's backtest.
type Outcome struct {
	Symbol    string
	Result    *backtest.Result
	Artifacts *report.Artifacts
	Err       error
}

// RunSymbol backtests one series with a fresh strategy instance, then
// stores its report and history record.
func (a *App) RunSymbol(ctx context.Context, series core.PriceSeries) (*Outcome, error) {
	strat, err := a.strategies.New(a.cfg.Strategy.Name, strategy.Config{Params: a.cfg.Strategy.Params})
	if err != nil {
		return nil, err
	}

	res, err := a.runner.Run(ctx, series, strat)
	if err != nil {
		return nil, err
	}

	arts, err := a.reports.Write(ctx, res, a.cfg.Strategy.Params)
	if err != nil {
		return nil, err
	}

	if err := a.history.Save(ctx, run.FromResult(res, arts.Location)); err != nil {
		return nil, fmt.Errorf("saving run history: %w", err)
	}

	return &Outcome{Symbol: series.Symbol, Result: res, Artifacts: arts}, nil
}

// RunSummary collects the outcomes of RunAll in symbol order.
type RunSummary struct {
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Failures returns the outcomes that ended in an error.
func (s *RunSummary) Failures() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// RunAll backtests every symbol of ds independently on at most
// cfg.Backtest.Workers goroutines. A failing symbol is logged and recorded
// in the summary; the others continue. An unregistered strategy fails the
// whole run before any symbol starts. Otherwise the only error returned is a
// cancelled context.
func (a *App) RunAll(ctx context.Context, ds *dataset.Dataset) (*RunSummary, error) {
	if !a.strategies.Has(a.cfg.Strategy.Name) {
		return nil, core.WrapError(core.ErrStrategyNotFound, fmt.Errorf("strategy %q", a.cfg.Strategy.Name))
	}

	start := time.Now()
	symbols := ds.Symbols()
	outcomes := make([]Outcome, len(symbols))

	a.metrics.RunStarted()
	defer a.metrics.RunFinished()

	a.logger.Info("starting backtests",
		zap.Int("symbols", len(symbols)),
		zap.String("strategy", a.cfg.Strategy.Name),
		zap.Int("workers", a.cfg.Backtest.Workers),
	)

	var g errgroup.Group
	g.SetLimit(max(a.cfg.Backtest.Workers, 1))
	for i, sym := range symbols {
		i, sym := i, sym
		series, _ := ds.Get(sym)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = Outcome{Symbol: sym, Err: err}
				return nil
			}
			out, err := a.RunSymbol(ctx, series)
			if err != nil {
				a.logger.Warn("symbol failed", zap.String("symbol", sym), zap.Error(err))
				outcomes[i] = Outcome{Symbol: sym, Err: err}
				return nil
			}
			outcomes[i] = *out
			return nil
		})
	}
	_ = g.Wait()

	summary := &RunSummary{Outcomes: outcomes, Duration: time.Since(start)}
	for _, o := range outcomes {
		if o.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	a.logger.Info("backtests finished",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	)
	return summary, ctx.Err()
}

// LoadDataset opens a Parquet cache or kline CSV. An empty path selects
// the configured cache.
func (a *App) LoadDataset(path string) (*dataset.Dataset, error) {
	if path == "" {
		path = dataset.Path(a.cfg.Data.Dir, a.cfg.Data.Dataset)
	}
	return a.loader.Open(path, a.cfg.Data.Interval)
}

// FetchSeries pulls klines for one symbol from the market data source.
func (a *App) FetchSeries(ctx context.Context, symbol string, start, end time.Time) (core.PriceSeries, error) {
	src, err := a.collectors.Get(DefaultSource)
	if err != nil {
		return core.PriceSeries{}, err
	}
	bars, err := src.FetchHistory(ctx, symbol, start, end, a.cfg.Data.Interval)
	if err != nil {
		return core.PriceSeries{}, err
	}
	if len(bars) == 0 {
		return core.PriceSeries{}, core.WrapError(core.ErrNoData, fmt.Errorf("no klines for %s", symbol))
	}
	return dataset.Merge(symbol, a.cfg.Data.Interval, bars)
}

// Progress is notified after each of total pairs is processed by Download.
type Progress func(total int, symbol string, err error)

// DownloadSummary describes a completed Download.
type DownloadSummary struct {
	Pairs   []collector.Pair
	Files   []string
	Skipped map[string]error
	Path    string // Parquet cache
	Symbols int
	Bars    int
}

// Download ranks the top pairs by liquidity, fetches their monthly
// archives, and merges them into the Parquet cache. Pairs whose archive
// cannot be fetched are skipped.
func (a *App) Download(ctx context.Context, progress Progress) (*DownloadSummary, error) {
	src, err := a.collectors.Get(DefaultSource)
	if err != nil {
		return nil, err
	}

	pairs, err := src.TopLiquid(ctx, a.cfg.Data.QuoteAsset, a.cfg.Data.TopN)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, err)
	}
	a.logger.Info("ranked pairs",
		zap.String("quote_asset", a.cfg.Data.QuoteAsset),
		zap.Int("pairs", len(pairs)),
	)

	summary := &DownloadSummary{Pairs: pairs, Skipped: make(map[string]error)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(max(a.cfg.Backtest.Workers, 1))
	for _, p := range pairs {
		p := p
		g.Go(func() error {
			path, err := a.archive.Fetch(ctx, p.Symbol, a.cfg.Data.Interval, a.cfg.Data.Month)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.logger.Warn("skipping pair", zap.String("symbol", p.Symbol), zap.Error(err))
				summary.Skipped[p.Symbol] = err
			} else {
				summary.Files = append(summary.Files, path)
			}
			if progress != nil {
				progress(len(pairs), p.Symbol, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Strings(summary.Files)

	ds, err := a.loader.Load(summary.Files, a.cfg.Data.Interval)
	if err != nil {
		return nil, err
	}

	summary.Path = dataset.Path(a.cfg.Data.Dir, a.cfg.Data.Dataset)
	if err := dataset.WriteParquet(summary.Path, ds); err != nil {
		return nil, err
	}
	summary.Symbols = ds.Len()
	summary.Bars = ds.Bars()

	a.logger.Info("dataset written",
		zap.String("path", summary.Path),
		zap.Int("symbols", summary.Symbols),
		zap.Int("bars", summary.Bars),
		zap.Int("skipped", len(summary.Skipped)),
	)
	return summary, nil
}
