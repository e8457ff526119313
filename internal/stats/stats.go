package stats

import (
	"fmt"
	"math"

	"github.com/moznion/go-optional"
	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/position"
)

// Compute derives the metrics of a run. positions must come from an
// evaluated strategy: nil is a precondition failure, never a cue to
// recompute.
func Compute(closes []float64, positions []int) (Metrics, error) {
	if err := checkInputs(closes, positions); err != nil {
		return Metrics{}, err
	}

	returns := Returns(closes)
	strategy := StrategyReturns(returns, positions)
	winRate := calculateWinRate(strategy, positions)

	return Metrics{
		TotalReturn:  optional.Some(sum(returns)),
		SharpeRatio:  calculateSharpeRatio(returns),
		MaxDrawdown:  optional.Some(calculateMaxDrawdown(closes)),
		WinRate:      optional.Some(winRate),
		Expectancy:   calculateExpectancy(strategy, winRate),
		ExposureTime: optional.Some(calculateExposure(positions)),
	}, nil
}

// Returns gives the simple per-bar return of closes, 0 on the first bar.
func Returns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for t := 1; t < len(closes); t++ {
		out[t] = closes[t]/closes[t-1] - 1
	}
	return out
}

// StrategyReturns weights each bar's return by its position event.
func StrategyReturns(returns []float64, positions []int) []float64 {
	out := make([]float64, len(returns))
	for t := range returns {
		out[t] = float64(positions[t]) * returns[t]
	}
	return out
}

// EquityCurve compounds the bar returns while the strategy is long. An entry
// at bar t is filled at close[t], so the first return earned is t+1's.
// The curve starts at 1.
func EquityCurve(closes []float64, positions []int) ([]float64, error) {
	if err := checkInputs(closes, positions); err != nil {
		return nil, err
	}

	returns := Returns(closes)
	held := position.Holding(positions)
	curve := make([]float64, len(closes))
	for t := range curve {
		if t == 0 {
			curve[t] = 1
			continue
		}
		curve[t] = curve[t-1]
		if held[t-1] {
			curve[t] *= 1 + returns[t]
		}
	}
	return curve, nil
}

// AggregateReturn is the compounded return of the long-only equity curve.
func AggregateReturn(closes []float64, positions []int) (float64, error) {
	curve, err := EquityCurve(closes, positions)
	if err != nil {
		return 0, err
	}
	if len(curve) == 0 {
		return 0, nil
	}
	return curve[len(curve)-1] - 1, nil
}

func checkInputs(closes []float64, positions []int) error {
	if positions == nil {
		return core.WrapError(core.ErrNotEvaluated, fmt.Errorf("position series not derived"))
	}
	if len(positions) != len(closes) {
		return core.WrapError(core.ErrInvalidSeries,
			fmt.Errorf("%d positions for %d closes", len(positions), len(closes)))
	}
	for i, c := range closes {
		if math.IsNaN(c) || math.IsInf(c, 0) || c <= 0 {
			return core.WrapError(core.ErrInvalidSeries, fmt.Errorf("close %d is %v", i, c))
		}
	}
	return nil
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return sum(values) / float64(len(values))
}

// calculateSharpeRatio is mean over sample standard deviation, with no
// annualization and no risk-free rate. Undefined for a flat return series.
func calculateSharpeRatio(returns []float64) optional.Option[float64] {
	if len(returns) < 2 {
		return optional.None[float64]()
	}

	m := mean(returns)
	var variance float64
	for _, r := range returns {
		variance += (r - m) * (r - m)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return optional.None[float64]()
	}
	return optional.Some(m / stdDev)
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of closes,
// as a non-positive fraction of the running peak.
func calculateMaxDrawdown(closes []float64) float64 {
	var maxDD float64
	var peak float64
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if dd := (c - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// calculateWinRate counts winning bars over the number of bars where the
// position value changed. No changes means no trades and a zero rate.
func calculateWinRate(strategy []float64, positions []int) float64 {
	var wins, changes int
	for _, r := range strategy {
		if r > 0 {
			wins++
		}
	}
	// Bar 0 has no predecessor, so it never counts as a change.
	for t := 1; t < len(positions); t++ {
		if positions[t] != positions[t-1] {
			changes++
		}
	}
	if changes == 0 {
		return 0
	}
	return float64(wins) / float64(changes)
}

// calculateExpectancy is winRate*avgWin - (1-winRate)*avgLoss. avgLoss keeps
// its sign. Without a winning or a losing bar it is undefined.
func calculateExpectancy(strategy []float64, winRate float64) optional.Option[float64] {
	var wins, losses []float64
	for _, r := range strategy {
		switch {
		case r > 0:
			wins = append(wins, r)
		case r < 0:
			losses = append(losses, r)
		}
	}
	if len(wins) == 0 || len(losses) == 0 {
		return optional.None[float64]()
	}
	return optional.Some(winRate*mean(wins) - (1-winRate)*mean(losses))
}

func calculateExposure(positions []int) float64 {
	if len(positions) == 0 {
		return 0
	}
	var active int
	for _, p := range positions {
		if p != 0 {
			active++
		}
	}
	return float64(active) / float64(len(positions))
}
