// Package position turns a binary signal sequence into lagged entry/exit
// events and the long/flat holding state they imply.
package position

import "time"

// Event values carried by a position series.
const (
	Exit  = -1
	None  = 0
	Entry = 1
)

// Derive returns the position series for signal:
// position[t] = signal[t-1] - signal[t-2] for t >= 2, and 0 for t < 2.
// position[t] therefore only depends on signal[0..t-1].
func Derive(signal []int) []int {
	positions := make([]int, len(signal))
	for t := 2; t < len(signal); t++ {
		positions[t] = signal[t-1] - signal[t-2]
	}
	return positions
}

// Holding reports, per bar, whether the strategy is long: the latest
// non-zero event at or before t was an entry.
func Holding(positions []int) []bool {
	held := make([]bool, len(positions))
	long := false
	for t, p := range positions {
		switch p {
		case Entry:
			long = true
		case Exit:
			long = false
		}
		held[t] = long
	}
	return held
}

// Trade represents a simulated trade from entry to exit
type Trade struct {
	EntryIndex int
	ExitIndex  int // -1 if position still open
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Return     float64 // Fractional return
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.Return > 0
}

// IsClosed returns true if the trade has an exit
func (t Trade) IsClosed() bool {
	return t.ExitIndex >= 0
}

// Trades pairs entry and exit events into round trips priced at the close of
// the event bar. An exit without an open trade is ignored; a trade still open
// at the end is marked to the last close.
func Trades(positions []int, closes []float64, times []time.Time) []Trade {
	var trades []Trade
	var open *Trade

	at := func(i int) time.Time {
		if i < len(times) {
			return times[i]
		}
		return time.Time{}
	}

	for i, p := range positions {
		switch p {
		case Entry:
			// Only open a new trade if not already in a position
			if open == nil {
				open = &Trade{
					EntryIndex: i,
					ExitIndex:  -1,
					EntryTime:  at(i),
					EntryPrice: closes[i],
				}
			}
		case Exit:
			if open != nil {
				open.ExitIndex = i
				open.ExitTime = at(i)
				open.ExitPrice = closes[i]
				open.Return = (open.ExitPrice - open.EntryPrice) / open.EntryPrice
				trades = append(trades, *open)
				open = nil
			}
		}
	}

	if open != nil && len(closes) > 0 {
		last := len(closes) - 1
		open.ExitTime = at(last)
		open.ExitPrice = closes[last]
		open.Return = (open.ExitPrice - open.EntryPrice) / open.EntryPrice
		trades = append(trades, *open)
	}

	return trades
}
