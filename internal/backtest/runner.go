package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/position"
	"github.com/newthinker/crossbt/internal/stats"
	"github.com/newthinker/crossbt/internal/strategy"
	"go.uber.org/zap"
)

// Recorder receives run metrics. *metrics.Registry satisfies it.
type Recorder interface {
	RecordBacktest(strategy, status string, duration float64)
	RecordEvaluation(strategy string, bars, entries, exits int)
	RecordTrade(strategy string, win bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordBacktest(string, string, float64) {}
func (nopRecorder) RecordEvaluation(string, int, int, int) {}
func (nopRecorder) RecordTrade(string, bool)               {}

// Runner sequences one backtest: evaluate, compute metrics, aggregate.
// It holds no per-run state and is safe for concurrent use as long as each
// run gets its own strategy instance.
type Runner struct {
	recorder Recorder
	logger   *zap.Logger
}

// NewRunner creates a Runner. Both collaborators are optional.
func NewRunner(recorder Recorder, logger *zap.Logger) *Runner {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{recorder: recorder, logger: logger}
}

// Run evaluates strat over series and returns the metrics, the aggregate
// return and the simulated trades.
func (r *Runner) Run(ctx context.Context, series core.PriceSeries, strat strategy.Strategy) (*Result, error) {
	start := time.Now()
	name := strat.Name()
	log := r.logger.With(
		zap.String("symbol", series.Symbol),
		zap.String("strategy", name),
	)

	result, err := r.run(ctx, series, strat)
	elapsed := time.Since(start)
	if err != nil {
		r.recorder.RecordBacktest(name, "error", elapsed.Seconds())
		log.Error("backtest failed", zap.Error(err))
		return nil, err
	}
	result.Duration = elapsed

	r.recorder.RecordBacktest(name, "success", elapsed.Seconds())
	r.recorder.RecordEvaluation(name, result.Bars, result.Entries(), result.Exits())
	for _, t := range result.Trades {
		if t.IsClosed() {
			r.recorder.RecordTrade(name, t.IsWin())
		}
	}

	log.Info("backtest complete",
		zap.String("run_id", result.ID.String()),
		zap.Int("bars", result.Bars),
		zap.Int("trades", len(result.Trades)),
		zap.Float64("aggregate_return", result.AggregateReturn),
		zap.Duration("duration", elapsed),
	)
	return result, nil
}

func (r *Runner) run(ctx context.Context, series core.PriceSeries, strat strategy.Strategy) (*Result, error) {
	if series.Len() < 2 {
		r.logger.Warn("series too short to trade",
			zap.String("symbol", series.Symbol),
			zap.Int("bars", series.Len()),
		)
	}

	frame, err := strat.Evaluate(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", strat.Name(), err)
	}

	metrics, err := strat.Metrics()
	if err != nil {
		return nil, fmt.Errorf("computing metrics: %w", err)
	}

	aggregate, err := stats.AggregateReturn(frame.Close, frame.Position)
	if err != nil {
		return nil, fmt.Errorf("aggregating returns: %w", err)
	}

	trades := position.Trades(frame.Position, frame.Close, frame.Times)

	return &Result{
		ID:              uuid.New(),
		Strategy:        strat.Name(),
		Description:     strat.Description(),
		Symbol:          series.Symbol,
		Interval:        series.Interval,
		Bars:            series.Len(),
		Start:           series.Start(),
		End:             series.End(),
		Metrics:         metrics,
		AggregateReturn: aggregate,
		Trades:          trades,
		TradeStats:      CalculateTradeStats(trades),
		Frame:           frame,
		CreatedAt:       time.Now().UTC(),
	}, nil
}
