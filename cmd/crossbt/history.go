package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/crossbt/internal/app"
	"github.com/newthinker/crossbt/internal/config"
	"github.com/newthinker/crossbt/internal/stats"
	"github.com/newthinker/crossbt/internal/storage/run"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	historyStrategy string
	historySymbol   string
	historyLimit    int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored backtest runs",
	Long: `List past runs, newest first. Runs persist across invocations only when
results.history_dsn points at a SQLite database.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyStrategy, "strategy", "", "Filter by strategy")
	historyCmd.Flags().StringVar(&historySymbol, "symbol", "", "Filter by symbol")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withApp(nil, func(ctx context.Context, a *app.App, cfg *config.Config, log *zap.Logger) error {
		filter := run.ListFilter{
			Strategy: historyStrategy,
			Symbol:   historySymbol,
			Limit:    historyLimit,
		}
		records, err := a.History().List(ctx, filter)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}
		total, err := a.History().Count(ctx, filter)
		if err != nil {
			return fmt.Errorf("counting runs: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tCREATED\tSYMBOL\tSTRATEGY\tBARS\tTOTAL RETURN\tSHARPE\tAGGREGATE\tTRADES\t")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%.4f\t%d\t\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Symbol, r.Strategy, r.Bars,
				formatMetric(r.Metrics, stats.TotalReturn),
				formatMetric(r.Metrics, stats.SharpeRatio),
				r.AggregateReturn, r.Trades)
		}
		w.Flush()
		fmt.Printf("\nShowing %d of %d runs\n", len(records), total)

		log.Debug("runs listed", zap.Int("count", len(records)))
		return nil
	})
}
