// Package run keeps the history of completed backtests.
package run

import (
	"context"
	"time"

	"github.com/newthinker/crossbt/internal/backtest"
	"github.com/newthinker/crossbt/internal/stats"
)

// Record is the persisted summary of one backtest.
type Record struct {
	ID              string
	Strategy        string
	Description     string
	Symbol          string
	Interval        string
	Bars            int
	Start           time.Time
	End             time.Time
	Metrics         stats.Metrics
	AggregateReturn float64
	Trades          int
	Location        string // where the report artifacts were written
	CreatedAt       time.Time
}

// FromResult summarizes a backtest result for storage.
func FromResult(r *backtest.Result, location string) Record {
	return Record{
		ID:              r.ID.String(),
		Strategy:        r.Strategy,
		Description:     r.Description,
		Symbol:          r.Symbol,
		Interval:        r.Interval,
		Bars:            r.Bars,
		Start:           r.Start,
		End:             r.End,
		Metrics:         r.Metrics,
		AggregateReturn: r.AggregateReturn,
		Trades:          len(r.Trades),
		Location:        location,
		CreatedAt:       r.CreatedAt,
	}
}

// Store defines the interface for run persistence.
type Store interface {
	// Save persists a run, assigning an ID when it has none.
	Save(ctx context.Context, rec Record) error

	// GetByID retrieves a run by its ID.
	GetByID(ctx context.Context, id string) (*Record, error)

	// List retrieves runs matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]Record, error)

	// Count returns the number of runs matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)

	Close() error
}

// ListFilter defines criteria for listing runs.
type ListFilter struct {
	Symbol   string
	Strategy string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}
