// Package signal derives the per-bar entry signal of the SMA crossover
// strategy: short SMA above long SMA while local volatility is above its
// whole-history average.
package signal

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/indicator"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Params holds the rolling window lengths, in bars.
type Params struct {
	ShortWindow      int `mapstructure:"short_window" yaml:"short_window" validate:"required,min=1"`
	LongWindow       int `mapstructure:"long_window" yaml:"long_window" validate:"required,min=1"`
	VolatilityWindow int `mapstructure:"volatility_window" yaml:"volatility_window" validate:"required,min=1"`
}

// DefaultParams returns the 50/200/30 windows.
func DefaultParams() Params {
	return Params{ShortWindow: 50, LongWindow: 200, VolatilityWindow: 30}
}

// Validate checks that every window is a positive bar count.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return core.WrapError(core.ErrInvalidParams, err)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("short_window=%d, long_window=%d, volatility_window=%d", p.ShortWindow, p.LongWindow, p.VolatilityWindow)
}

// Series is the output of Generate. Every slice is aligned index-for-index
// with the input closes; undefined rolling values are NaN.
type Series struct {
	SMAShort      []float64
	SMALong       []float64
	Volatility    []float64
	AvgVolatility float64
	Signal        []int
}

// Generate computes the signal series for closes. The input is never
// modified. A series shorter than the long window yields no signal.
func Generate(closes []float64, p Params) (*Series, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s := &Series{
		SMAShort:   indicator.RollingMean(closes, p.ShortWindow),
		SMALong:    indicator.RollingMean(closes, p.LongWindow),
		Volatility: indicator.RollingStd(closes, p.VolatilityWindow),
		Signal:     make([]int, len(closes)),
	}
	s.AvgVolatility = indicator.NanMean(s.Volatility)

	// NaN operands compare false, so undefined windows never fire.
	for t := p.ShortWindow; t < len(closes); t++ {
		if s.SMAShort[t] > s.SMALong[t] && s.Volatility[t] > s.AvgVolatility {
			s.Signal[t] = 1
		}
	}

	return s, nil
}

