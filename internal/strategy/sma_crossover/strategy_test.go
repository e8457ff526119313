package sma_crossover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/signal"
	"github.com/newthinker/crossbt/internal/stats"
	"github.com/newthinker/crossbt/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risingSeries(t *testing.T, n int) core.PriceSeries {
	t.Helper()
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.OHLCV, n)
	for i := range bars {
		c := 0.03 + float64(i)*0.0001
		bars[i] = core.OHLCV{Time: base.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: 10}
	}
	s, err := core.NewPriceSeries("ETHBTC", "1m", bars)
	require.NoError(t, err)
	return s
}

func testParams() signal.Params {
	return signal.Params{ShortWindow: 30, LongWindow: 80, VolatilityWindow: 10}
}

func TestSMACrossover_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*SMACrossover)(nil)
}

func TestSMACrossover_NameAndDescription(t *testing.T) {
	s, err := New(testParams())
	require.NoError(t, err)

	assert.Equal(t, "sma_crossover", s.Name())
	assert.Equal(t, "SMA Crossover Strategy (short_window=30, long_window=80, volatility_window=10)", s.Description())
}

func TestSMACrossover_GenerateSignals(t *testing.T) {
	s, err := New(testParams())
	require.NoError(t, err)

	frame, err := s.GenerateSignals(risingSeries(t, 1440))
	require.NoError(t, err)

	for _, col := range []string{ColSMAShort, ColSMALong, ColVolatility} {
		assert.Len(t, frame.Indicators[col], 1440, col)
	}
	require.Len(t, frame.Signal, 1440)
	require.Len(t, frame.Position, 1440)

	// A 0->1 signal change at i is followed by an entry at i+1, and 1->0 by an exit.
	for i := 30; i < len(frame.Signal)-1; i++ {
		prev, curr, next := frame.Signal[i-1], frame.Signal[i], frame.Position[i+1]
		if prev == 0 && curr == 1 {
			assert.Equal(t, 1, next, "entry expected at %d", i+1)
		} else if prev == 1 && curr == 0 {
			assert.Equal(t, -1, next, "exit expected at %d", i+1)
		}
	}
}

func TestSMACrossover_GenerateSignalsIsPure(t *testing.T) {
	s, err := New(testParams())
	require.NoError(t, err)

	_, err = s.GenerateSignals(risingSeries(t, 200))
	require.NoError(t, err)

	_, err = s.Metrics()
	assert.True(t, errors.Is(err, core.ErrNotEvaluated), "GenerateSignals must not stage a frame")
}

func TestSMACrossover_MetricsBeforeEvaluate(t *testing.T) {
	s, err := New(testParams())
	require.NoError(t, err)

	_, err = s.Metrics()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotEvaluated))
}

func TestSMACrossover_EvaluateIdempotent(t *testing.T) {
	s, err := New(testParams())
	require.NoError(t, err)
	series := risingSeries(t, 1440)
	ctx := context.Background()

	first, err := s.Evaluate(ctx, series)
	require.NoError(t, err)
	m1, err := s.Metrics()
	require.NoError(t, err)

	second, err := s.Evaluate(ctx, series)
	require.NoError(t, err)
	m2, err := s.Metrics()
	require.NoError(t, err)

	assert.Equal(t, first.Signal, second.Signal)
	assert.Equal(t, first.Position, second.Position)
	assert.Equal(t, m1.Entries(), m2.Entries())
}

func TestSMACrossover_DoesNotMutateSeries(t *testing.T) {
	s, err := New(testParams())
	require.NoError(t, err)
	series := risingSeries(t, 300)
	before := append([]core.OHLCV(nil), series.Bars...)

	frame, err := s.Evaluate(context.Background(), series)
	require.NoError(t, err)
	frame.Close[0] = -1

	assert.Equal(t, before, series.Bars)
}

func TestSMACrossover_MonotonicMetrics(t *testing.T) {
	s, err := New(testParams())
	require.NoError(t, err)

	_, err = s.Evaluate(context.Background(), risingSeries(t, 1440))
	require.NoError(t, err)
	m, err := s.Metrics()
	require.NoError(t, err)

	for _, e := range m.Entries() {
		if e.Name == stats.Expectancy {
			continue
		}
		assert.True(t, e.Defined(), "%s should be defined", e.Name)
	}
	assert.Greater(t, m.TotalReturn.Unwrap(), 0.0)
	assert.Greater(t, m.SharpeRatio.Unwrap(), 0.0)
	assert.LessOrEqual(t, m.MaxDrawdown.Unwrap(), 0.0)
	assert.True(t, m.WinRate.Unwrap() >= 0 && m.WinRate.Unwrap() <= 1)
	assert.True(t, m.ExposureTime.Unwrap() >= 0 && m.ExposureTime.Unwrap() <= 1)
}

func TestSMACrossover_ShortSeriesIsNotAnError(t *testing.T) {
	s, err := New(testParams())
	require.NoError(t, err)

	frame, err := s.Evaluate(context.Background(), risingSeries(t, 50))
	require.NoError(t, err)
	for _, v := range frame.Signal {
		assert.Equal(t, 0, v)
	}

	m, err := s.Metrics()
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.WinRate.Unwrap())
	assert.Equal(t, 0.0, m.ExposureTime.Unwrap())
}

func TestSMACrossover_EvaluateCancelled(t *testing.T) {
	s, err := New(testParams())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Evaluate(ctx, risingSeries(t, 10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSMACrossover_InvalidSeries(t *testing.T) {
	s, err := New(testParams())
	require.NoError(t, err)

	series := risingSeries(t, 10)
	series.Bars[5].Time = series.Bars[4].Time

	_, err = s.Evaluate(context.Background(), series)
	assert.True(t, errors.Is(err, core.ErrInvalidSeries))
}

func TestFactory(t *testing.T) {
	st, err := Factory(strategy.Config{Params: map[string]any{"short_window": 5, "long_window": 20}})
	require.NoError(t, err)

	sma := st.(*SMACrossover)
	assert.Equal(t, signal.Params{ShortWindow: 5, LongWindow: 20, VolatilityWindow: 30}, sma.Params())

	_, err = Factory(strategy.Config{Params: map[string]any{"short_window": 0}})
	assert.True(t, errors.Is(err, core.ErrInvalidParams))
}

func TestSMACrossover_FailedEvaluateClearsFrame(t *testing.T) {
	s, err := New(testParams())
	require.NoError(t, err)

	_, err = s.Evaluate(context.Background(), risingSeries(t, 1440))
	require.NoError(t, err)
	_, err = s.Metrics()
	require.NoError(t, err)

	bad := risingSeries(t, 1440)
	bad.Bars[5].Close = -1
	_, err = s.Evaluate(context.Background(), bad)
	require.True(t, errors.Is(err, core.ErrInvalidSeries))

	_, err = s.Metrics()
	assert.True(t, errors.Is(err, core.ErrNotEvaluated))

	_, err = s.Evaluate(context.Background(), risingSeries(t, 1440))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Evaluate(ctx, risingSeries(t, 1440))
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.Metrics()
	assert.True(t, errors.Is(err, core.ErrNotEvaluated))
}
