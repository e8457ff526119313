package sma_crossover

import (
	"context"
	"fmt"

	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/position"
	"github.com/newthinker/crossbt/internal/signal"
	"github.com/newthinker/crossbt/internal/stats"
	"github.com/newthinker/crossbt/internal/strategy"
)

// Name is the registry name of the strategy.
const Name = "sma_crossover"

// Indicator column names in the frame.
const (
	ColSMAShort     = "sma_short"
	ColSMALong      = "sma_long"
	ColVolatility   = "volatility"
	LevelVolatility = "avg_volatility"
)

// SMACrossover implements a moving average crossover strategy filtered by
// volatility.
type SMACrossover struct {
	params signal.Params
	frame  *strategy.Frame
}

// New creates a new SMA Crossover strategy
func New(params signal.Params) (*SMACrossover, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &SMACrossover{params: params}, nil
}

// Factory builds the strategy from config params, starting from the
// default windows.
func Factory(cfg strategy.Config) (strategy.Strategy, error) {
	params := signal.DefaultParams()
	if err := strategy.DecodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	return New(params)
}

func (m *SMACrossover) Name() string {
	return Name
}

func (m *SMACrossover) Description() string {
	return fmt.Sprintf("SMA Crossover Strategy (%s)", m.params)
}

// Params returns the configured windows.
func (m *SMACrossover) Params() signal.Params {
	return m.params
}

func (m *SMACrossover) GenerateSignals(series core.PriceSeries) (*strategy.Frame, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}

	closes := series.Closes()
	s, err := signal.Generate(closes, m.params)
	if err != nil {
		return nil, err
	}

	return &strategy.Frame{
		Symbol: series.Symbol,
		Times:  series.Times(),
		Close:  closes,
		Indicators: map[string][]float64{
			ColSMAShort:   s.SMAShort,
			ColSMALong:    s.SMALong,
			ColVolatility: s.Volatility,
		},
		Levels:   map[string]float64{LevelVolatility: s.AvgVolatility},
		Signal:   s.Signal,
		Position: position.Derive(s.Signal),
	}, nil
}

// Evaluate replaces the current frame. A failed run leaves the strategy
// unevaluated.
func (m *SMACrossover) Evaluate(ctx context.Context, series core.PriceSeries) (*strategy.Frame, error) {
	m.frame = nil
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame, err := m.GenerateSignals(series)
	if err != nil {
		return nil, err
	}
	m.frame = frame
	return frame, nil
}

func (m *SMACrossover) Metrics() (stats.Metrics, error) {
	return strategy.ComputeMetrics(m.frame)
}
