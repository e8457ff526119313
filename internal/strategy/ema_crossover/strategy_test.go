package ema_crossover

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(closes []float64) core.PriceSeries {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = core.OHLCV{Time: base.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return core.PriceSeries{Symbol: "TEST", Interval: "1d", Bars: bars}
}

func TestEMACrossover_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*EMACrossover)(nil)
}

func TestNew_InvalidParams(t *testing.T) {
	_, err := New(Params{FastPeriod: 10, SlowPeriod: 5})
	assert.True(t, errors.Is(err, core.ErrInvalidParams))

	_, err = New(Params{FastPeriod: 0, SlowPeriod: 5})
	assert.True(t, errors.Is(err, core.ErrInvalidParams))
}

func TestEMACrossover_UpThenDown(t *testing.T) {
	// Decline, rally, decline: fast EMA crosses above then back below.
	closes := make([]float64, 0, 90)
	for i := 0; i < 30; i++ {
		closes = append(closes, 100-float64(i))
	}
	for i := 0; i < 30; i++ {
		closes = append(closes, 70+float64(i)*2)
	}
	for i := 0; i < 30; i++ {
		closes = append(closes, 130-float64(i)*2)
	}

	e, err := New(Params{FastPeriod: 3, SlowPeriod: 8})
	require.NoError(t, err)

	frame, err := e.Evaluate(context.Background(), series(closes))
	require.NoError(t, err)

	assert.True(t, math.IsNaN(frame.Indicators[ColSlow][6]))
	assert.Contains(t, frame.Position, 1)
	assert.Contains(t, frame.Position, -1)
	for i := 0; i < 8; i++ {
		assert.Equal(t, 0, frame.Signal[i], "no signal before the slow EMA is defined")
	}

	m, err := e.Metrics()
	require.NoError(t, err)
	assert.Greater(t, m.ExposureTime.Unwrap(), 0.0)
}

func TestFactory_Defaults(t *testing.T) {
	s, err := Factory(strategy.Config{})
	require.NoError(t, err)
	assert.Equal(t, "EMA Crossover (12/26)", s.Description())
}

func TestEMACrossover_FailedEvaluateClearsFrame(t *testing.T) {
	e, err := New(Params{FastPeriod: 3, SlowPeriod: 8})
	require.NoError(t, err)

	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	_, err = e.Evaluate(context.Background(), series(closes))
	require.NoError(t, err)
	_, err = e.Metrics()
	require.NoError(t, err)

	bad := append([]float64(nil), closes...)
	bad[5] = -1
	_, err = e.Evaluate(context.Background(), series(bad))
	require.True(t, errors.Is(err, core.ErrInvalidSeries))

	_, err = e.Metrics()
	assert.True(t, errors.Is(err, core.ErrNotEvaluated))

	_, err = e.Evaluate(context.Background(), series(closes))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Evaluate(ctx, series(closes))
	require.ErrorIs(t, err, context.Canceled)

	_, err = e.Metrics()
	assert.True(t, errors.Is(err, core.ErrNotEvaluated))
}
