// Package ema_crossover is a plain exponential moving average crossover:
// long while the fast EMA is above the slow EMA.
package ema_crossover

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/indicator"
	"github.com/newthinker/crossbt/internal/position"
	"github.com/newthinker/crossbt/internal/stats"
	"github.com/newthinker/crossbt/internal/strategy"
)

// Name is the registry name of the strategy.
const Name = "ema_crossover"

// Indicator column names in the frame.
const (
	ColFast = "ema_fast"
	ColSlow = "ema_slow"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Params holds the EMA periods, in bars. SlowPeriod must exceed FastPeriod.
type Params struct {
	FastPeriod int `mapstructure:"fast_period" validate:"required,min=1"`
	SlowPeriod int `mapstructure:"slow_period" validate:"required,gtfield=FastPeriod"`
}

// EMACrossover is long while the fast EMA is above the slow EMA.
type EMACrossover struct {
	params Params
	frame  *strategy.Frame
}

// New creates a new EMA Crossover strategy
func New(params Params) (*EMACrossover, error) {
	if err := validate.Struct(params); err != nil {
		return nil, core.WrapError(core.ErrInvalidParams, err)
	}
	return &EMACrossover{params: params}, nil
}

// Factory builds the strategy from config params, starting from the
// 12/26 periods.
func Factory(cfg strategy.Config) (strategy.Strategy, error) {
	params := Params{FastPeriod: 12, SlowPeriod: 26}
	if err := strategy.DecodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	return New(params)
}

func (e *EMACrossover) Name() string {
	return Name
}

func (e *EMACrossover) Description() string {
	return fmt.Sprintf("EMA Crossover (%d/%d)", e.params.FastPeriod, e.params.SlowPeriod)
}

func (e *EMACrossover) GenerateSignals(series core.PriceSeries) (*strategy.Frame, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}

	closes := series.Closes()
	fast := indicator.Align(indicator.EMA(closes, e.params.FastPeriod), len(closes))
	slow := indicator.Align(indicator.EMA(closes, e.params.SlowPeriod), len(closes))

	sig := make([]int, len(closes))
	for t := range closes {
		if fast[t] > slow[t] {
			sig[t] = 1
		}
	}

	return &strategy.Frame{
		Symbol:     series.Symbol,
		Times:      series.Times(),
		Close:      closes,
		Indicators: map[string][]float64{ColFast: fast, ColSlow: slow},
		Levels:     map[string]float64{},
		Signal:     sig,
		Position:   position.Derive(sig),
	}, nil
}

// Evaluate replaces the current frame. A failed run leaves the strategy
// unevaluated.
func (e *EMACrossover) Evaluate(ctx context.Context, series core.PriceSeries) (*strategy.Frame, error) {
	e.frame = nil
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame, err := e.GenerateSignals(series)
	if err != nil {
		return nil, err
	}
	e.frame = frame
	return frame, nil
}

func (e *EMACrossover) Metrics() (stats.Metrics, error) {
	return strategy.ComputeMetrics(e.frame)
}
