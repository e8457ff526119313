package backtest

import (
	"github.com/newthinker/crossbt/internal/position"
)

// CalculateTradeStats summarizes round trips. Open trades are counted but
// excluded from the win rate and returns.
func CalculateTradeStats(trades []position.Trade) TradeStats {
	if len(trades) == 0 {
		return TradeStats{}
	}

	var winning, losing, open int
	var returns []float64
	equity := 1.0

	for _, t := range trades {
		if !t.IsClosed() {
			open++
			continue
		}
		returns = append(returns, t.Return)
		equity *= 1 + t.Return
		if t.IsWin() {
			winning++
		} else {
			losing++
		}
	}

	closedTrades := winning + losing
	var winRate float64
	if closedTrades > 0 {
		winRate = float64(winning) / float64(closedTrades)
	}

	return TradeStats{
		TotalTrades:   len(trades),
		WinningTrades: winning,
		LosingTrades:  losing,
		OpenTrades:    open,
		WinRate:       winRate,
		TotalReturn:   equity - 1,
		MaxDrawdown:   calculateMaxDrawdown(returns),
	}
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of the
// compounded trade returns, as a positive fraction.
func calculateMaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	var maxDD float64
	peak := 1.0
	cumulative := 1.0

	for _, r := range returns {
		cumulative *= (1 + r)
		if cumulative > peak {
			peak = cumulative
		}
		if dd := (peak - cumulative) / peak; dd > maxDD {
			maxDD = dd
		}
	}

	return maxDD
}
