package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	sma := SMA([]float64{10, 11, 12, 13, 14, 15}, 3)
	assert.Equal(t, []float64{11, 12, 13, 14}, sma)
}

func TestSMA_NotEnoughData(t *testing.T) {
	assert.Empty(t, SMA([]float64{10, 11}, 5))
	assert.Empty(t, SMA([]float64{10, 11}, 0))
}

func TestSMA_ConstantDoesNotDrift(t *testing.T) {
	prices := make([]float64, 10000)
	for i := range prices {
		prices[i] = 0.0317
	}
	for _, v := range SMA(prices, 50) {
		require.InDelta(t, 0.0317, v, 1e-12)
	}
}

func TestEMA(t *testing.T) {
	ema := EMA([]float64{10, 11, 12, 13, 14, 15}, 3)
	require.Len(t, ema, 4)

	// seeded with SMA(3), then alpha = 0.5
	assert.Equal(t, 11.0, ema[0])
	assert.Equal(t, 12.0, ema[1])
	assert.Equal(t, 13.0, ema[2])
	assert.Equal(t, 14.0, ema[3])
}

func TestEMA_NotEnoughData(t *testing.T) {
	assert.Empty(t, EMA([]float64{10, 11}, 5))
	assert.Empty(t, EMA(nil, 3))
}
