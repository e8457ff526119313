package core

import (
	"fmt"
	"math"
	"time"
)

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries is an ordered run of bars for one symbol.
// It is treated as immutable input: accessors return copies.
type PriceSeries struct {
	Symbol   string
	Interval string // "1m", "5m", "1d"
	Bars     []OHLCV
}

// NewPriceSeries builds a series and validates it.
func NewPriceSeries(symbol, interval string, bars []OHLCV) (PriceSeries, error) {
	s := PriceSeries{Symbol: symbol, Interval: interval, Bars: bars}
	if err := s.Validate(); err != nil {
		return PriceSeries{}, err
	}
	return s, nil
}

// Len returns the number of bars
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// Closes returns a fresh slice of close prices.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Times returns a fresh slice of bar timestamps.
func (s PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Time
	}
	return out
}

// Start returns the first bar time, zero for an empty series.
func (s PriceSeries) Start() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[0].Time
}

// End returns the last bar time, zero for an empty series.
func (s PriceSeries) End() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Time
}

// Validate checks ordering and field sanity. An empty series is valid.
func (s PriceSeries) Validate() error {
	for i, b := range s.Bars {
		if b.Time.IsZero() {
			return WrapError(ErrInvalidSeries, fmt.Errorf("bar %d: missing timestamp", i))
		}
		if i > 0 && !b.Time.After(s.Bars[i-1].Time) {
			return WrapError(ErrInvalidSeries,
				fmt.Errorf("bar %d: timestamp %s not after %s", i, b.Time.Format(time.RFC3339), s.Bars[i-1].Time.Format(time.RFC3339)))
		}
		for name, v := range map[string]float64{"open": b.Open, "high": b.High, "low": b.Low, "close": b.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return WrapError(ErrInvalidSeries, fmt.Errorf("bar %d: invalid %s %v", i, name, v))
			}
		}
		if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
			return WrapError(ErrInvalidSeries, fmt.Errorf("bar %d: invalid volume %v", i, b.Volume))
		}
	}
	return nil
}
