package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/newthinker/crossbt/internal/app"
	"github.com/newthinker/crossbt/internal/config"
	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/dataset"
	"github.com/newthinker/crossbt/internal/stats"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runData     string
	runSymbol   string
	runStrategy string
	runFetch    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Backtest the configured strategy",
	Long: `Backtest the configured strategy on every pair of the dataset, or on a single
pair with --symbol. Each pair is evaluated independently; a failing pair is
reported without stopping the others.`,
	RunE: runBacktest,
}

func init() {
	runCmd.Flags().StringVar(&runData, "data", "", "Parquet cache or kline CSV (default: configured dataset)")
	runCmd.Flags().StringVar(&runSymbol, "symbol", "", "Only backtest this pair")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "Strategy name (default from config)")
	runCmd.Flags().BoolVar(&runFetch, "fetch", false, "Fetch klines for --symbol from the exchange API instead of the dataset")
	rootCmd.AddCommand(runCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	if runFetch && runSymbol == "" {
		return fmt.Errorf("--fetch requires --symbol")
	}
	override := func(cfg *config.Config) {
		if runStrategy != "" {
			cfg.Strategy.Name = runStrategy
		}
	}

	return withApp(override, func(ctx context.Context, a *app.App, cfg *config.Config, log *zap.Logger) error {
		ds, err := loadRunData(ctx, a, cfg)
		if err != nil {
			return err
		}

		summary, err := a.RunAll(ctx, ds)
		if err != nil {
			return err
		}

		printOutcomes(summary)
		log.Info("run complete",
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
		)
		if summary.Succeeded == 0 && summary.Failed > 0 {
			return fmt.Errorf("all %d backtests failed", summary.Failed)
		}
		return nil
	})
}

func loadRunData(ctx context.Context, a *app.App, cfg *config.Config) (*dataset.Dataset, error) {
	if runFetch {
		month, _ := time.Parse("2006-01", cfg.Data.Month)
		end := month.AddDate(0, 1, 0).Add(-time.Millisecond)
		series, err := a.FetchSeries(ctx, runSymbol, month, end)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", runSymbol, err)
		}
		ds := dataset.New(cfg.Data.Interval)
		ds.Add(series)
		return ds, nil
	}

	ds, err := a.LoadDataset(runData)
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	if runSymbol == "" {
		return ds, nil
	}

	series, ok := ds.Get(runSymbol)
	if !ok {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("symbol %s not in dataset", runSymbol))
	}
	one := dataset.New(ds.Interval)
	one.Add(series)
	return one, nil
}

func printOutcomes(summary *app.RunSummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "SYMBOL\tBARS\t")
	for _, name := range stats.Names {
		fmt.Fprintf(w, "%s\t", name)
	}
	fmt.Fprintln(w, "AGGREGATE\tTRADES\t")

	for _, o := range summary.Outcomes {
		if o.Err != nil {
			continue
		}
		r := o.Result
		fmt.Fprintf(w, "%s\t%d\t", o.Symbol, r.Bars)
		for _, e := range r.Metrics.Entries() {
			fmt.Fprintf(w, "%s\t", formatEntry(e))
		}
		fmt.Fprintf(w, "%.4f\t%d\t\n", r.AggregateReturn, len(r.Trades))
	}
	w.Flush()

	if failures := summary.Failures(); len(failures) > 0 {
		fmt.Printf("\nFailed (%d):\n", len(failures))
		for _, o := range failures {
			fmt.Printf("  %s: %v\n", o.Symbol, o.Err)
		}
	}
	fmt.Printf("\n%d succeeded, %d failed in %s\n", summary.Succeeded, summary.Failed, summary.Duration.Round(time.Millisecond))
}

func formatMetric(m stats.Metrics, name string) string {
	v, err := m.Get(name)
	if err != nil {
		return "?"
	}
	return formatEntry(stats.Entry{Name: name, Value: v})
}

func formatEntry(e stats.Entry) string {
	if !e.Defined() {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", e.Value.Unwrap())
}
