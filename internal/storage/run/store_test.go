package run

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(100),
		"sqlite": sqlite,
	}
}

func record(symbol, strategy string, created time.Time) Record {
	return Record{
		Strategy:    strategy,
		Description: "SMA Crossover Strategy (short_window=50, long_window=200, volatility_window=30)",
		Symbol:      symbol,
		Interval:    "1m",
		Bars:        1440,
		Start:       time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 2, 1, 23, 59, 0, 0, time.UTC),
		Metrics: stats.Metrics{
			TotalReturn:  optional.Some(0.12),
			SharpeRatio:  optional.None[float64](),
			MaxDrawdown:  optional.Some(-0.05),
			WinRate:      optional.Some(0.5),
			Expectancy:   optional.None[float64](),
			ExposureTime: optional.Some(0.01),
		},
		AggregateReturn: 0.03,
		Trades:          4,
		Location:        "results/" + symbol,
		CreatedAt:       created,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := record("ETHBTC", "sma_crossover", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
			rec.ID = "run-1"

			require.NoError(t, store.Save(ctx, rec))

			got, err := store.GetByID(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, rec.Symbol, got.Symbol)
			assert.Equal(t, rec.Description, got.Description)
			assert.Equal(t, rec.Bars, got.Bars)
			assert.True(t, rec.Start.Equal(got.Start))
			assert.True(t, rec.End.Equal(got.End))
			assert.Equal(t, 0.12, got.Metrics.TotalReturn.Unwrap())
			assert.True(t, got.Metrics.SharpeRatio.IsNone(), "undefined metrics stay undefined")
			assert.True(t, got.Metrics.Expectancy.IsNone())
			assert.Equal(t, 0.03, got.AggregateReturn)
			assert.Equal(t, 4, got.Trades)
		})
	}
}

func TestStore_AssignsID(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, record("ETHBTC", "sma_crossover", time.Time{})))

			runs, err := store.List(ctx, ListFilter{})
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.NotEmpty(t, runs[0].ID)
			assert.False(t, runs[0].CreatedAt.IsZero())
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.GetByID(context.Background(), "missing")
			assert.True(t, errors.Is(err, core.ErrRunNotFound))
		})
	}
}

func TestStore_ListFilterAndOrder(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, record("ETHBTC", "sma_crossover", base)))
			require.NoError(t, store.Save(ctx, record("XRPBTC", "sma_crossover", base.Add(time.Hour))))
			require.NoError(t, store.Save(ctx, record("ETHBTC", "ema_crossover", base.Add(2*time.Hour))))

			runs, err := store.List(ctx, ListFilter{})
			require.NoError(t, err)
			require.Len(t, runs, 3)
			assert.Equal(t, "ema_crossover", runs[0].Strategy, "newest first")

			runs, err = store.List(ctx, ListFilter{Symbol: "ETHBTC"})
			require.NoError(t, err)
			assert.Len(t, runs, 2)

			runs, err = store.List(ctx, ListFilter{Strategy: "sma_crossover", Limit: 1})
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, "XRPBTC", runs[0].Symbol)

			runs, err = store.List(ctx, ListFilter{Offset: 2})
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, "ETHBTC", runs[0].Symbol)

			runs, err = store.List(ctx, ListFilter{Offset: 5})
			require.NoError(t, err)
			assert.Empty(t, runs)

			runs, err = store.List(ctx, ListFilter{From: base.Add(30 * time.Minute), To: base.Add(90 * time.Minute)})
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, "XRPBTC", runs[0].Symbol)

			n, err := store.Count(ctx, ListFilter{Strategy: "sma_crossover"})
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		})
	}
}

func TestMemoryStore_Capacity(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	for _, sym := range []string{"A", "B", "C"} {
		store.Save(ctx, record(sym, "sma_crossover", time.Now()))
	}

	n, _ := store.Count(ctx, ListFilter{})
	assert.Equal(t, 2, n)
	runs, _ := store.List(ctx, ListFilter{})
	assert.Equal(t, "C", runs[0].Symbol)
	assert.Equal(t, "B", runs[1].Symbol)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	rec := record("ETHBTC", "sma_crossover", time.Now())
	rec.ID = "persisted"
	require.NoError(t, store.Save(ctx, rec))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetByID(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "ETHBTC", got.Symbol)
}
