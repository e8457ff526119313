package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/crossbt/internal/position"
	"github.com/newthinker/crossbt/internal/stats"
	"github.com/newthinker/crossbt/internal/strategy"
)

// Result holds the complete backtest output
type Result struct {
	ID              uuid.UUID
	Strategy        string
	Description     string
	Symbol          string
	Interval        string
	Bars            int
	Start           time.Time
	End             time.Time
	Metrics         stats.Metrics
	AggregateReturn float64 // compounded long-only return
	Trades          []position.Trade
	TradeStats      TradeStats
	Frame           *strategy.Frame
	Duration        time.Duration
	CreatedAt       time.Time
}

// TradeStats summarizes the round trips of a run
type TradeStats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	OpenTrades    int
	WinRate       float64 // Fraction of closed trades that were profitable
	TotalReturn   float64 // Compounded return of closed trades
	MaxDrawdown   float64 // Largest peak-to-trough decline of the trade equity
}

// Entries returns the number of entry events in the run
func (r *Result) Entries() int {
	return r.countEvents(position.Entry)
}

// Exits returns the number of exit events in the run
func (r *Result) Exits() int {
	return r.countEvents(position.Exit)
}

func (r *Result) countEvents(event int) int {
	if r.Frame == nil {
		return 0
	}
	var n int
	for _, p := range r.Frame.Position {
		if p == event {
			n++
		}
	}
	return n
}
