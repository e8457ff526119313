package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/newthinker/crossbt/internal/backtest"
	"github.com/newthinker/crossbt/internal/stats"
	"github.com/newthinker/crossbt/internal/storage/archive"
	"github.com/newthinker/crossbt/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var t0 = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

func testFrame() *strategy.Frame {
	n := 6
	f := &strategy.Frame{
		Symbol:     "ETHBTC",
		Times:      make([]time.Time, n),
		Close:      []float64{10, 11, 12, 11, 10, 12},
		Indicators: map[string][]float64{"sma_short": {math.NaN(), 10.5, 11.5, 11.5, 10.5, 11}},
		Levels:     map[string]float64{"avg_volatility": 0.05},
		Signal:     []int{0, 1, 1, 0, 0, 1},
		Position:   []int{0, 0, 1, 0, -1, 0},
	}
	for i := range f.Times {
		f.Times[i] = t0.Add(time.Duration(i) * time.Minute)
	}
	return f
}

func testResult() *backtest.Result {
	f := testFrame()
	return &backtest.Result{
		ID:          uuid.MustParse("5b0f6f34-2f5e-4c55-9d36-1f4f3e0b2a11"),
		Strategy:    "sma_crossover",
		Description: "SMA Crossover (2/4)",
		Symbol:      "ETHBTC",
		Interval:    "1m",
		Bars:        f.Len(),
		Start:       f.Times[0],
		End:         f.Times[f.Len()-1],
		Metrics: stats.Metrics{
			TotalReturn:  optional.Some(0.1),
			SharpeRatio:  optional.None[float64](),
			MaxDrawdown:  optional.Some(-0.2),
			WinRate:      optional.Some(0.5),
			Expectancy:   optional.None[float64](),
			ExposureTime: optional.Some(0.25),
		},
		AggregateReturn: -0.0833,
		TradeStats:      backtest.TradeStats{TotalTrades: 1, LosingTrades: 1},
		Frame:           f,
		CreatedAt:       t0.Add(time.Hour),
	}
}

func TestEncodeMetricsCSV(t *testing.T) {
	data, err := EncodeMetricsCSV(testResult().Metrics)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, stats.Names, records[0])
	assert.Equal(t, []string{"0.1", "", "-0.2", "0.5", "", "0.25"}, records[1])
}

func TestEncodeMetricsCSV_AllUndefined(t *testing.T) {
	data, err := EncodeMetricsCSV(stats.FromPointers(nil))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, ",,,,,", lines[1])
}

func TestEncodeSummary(t *testing.T) {
	res := testResult()
	data, err := EncodeSummary(NewSummary(res, map[string]any{"short_window": 2}))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, res.ID.String(), got["run_id"])
	assert.Equal(t, "sma_crossover", got["strategy"])
	assert.Equal(t, 6, got["bars"])
	assert.Equal(t, map[string]any{"short_window": 2}, got["params"])

	metrics := got["metrics"].(map[string]any)
	assert.Nil(t, metrics["sharpe_ratio"])
	assert.Contains(t, metrics, "sharpe_ratio")
	assert.Equal(t, 0.1, metrics["total_return"])

	// metric keys keep report order
	text := string(data)
	assert.Less(t, strings.Index(text, "total_return"), strings.Index(text, "exposure_time"))
}

func TestFrame_RoundTrip(t *testing.T) {
	f := testFrame()
	data, err := EncodeFrame(f)
	require.NoError(t, err)

	rows, err := DecodeFrame(data)
	require.NoError(t, err)
	require.Len(t, rows, f.Len())

	assert.Equal(t, t0.UnixMilli(), rows[0].Timestamp)
	assert.Equal(t, 12.0, rows[2].Close)
	assert.Equal(t, int32(1), rows[2].Position)
	assert.Equal(t, int32(-1), rows[4].Position)
	require.Len(t, rows[0].Indicators, 1)
	assert.Equal(t, "sma_short", rows[0].Indicators[0].Name)
	assert.True(t, math.IsNaN(rows[0].Indicators[0].Value))
	assert.Equal(t, 11.5, rows[2].Indicators[0].Value)
}

func TestEncodeFrame_Nil(t *testing.T) {
	_, err := EncodeFrame(nil)
	assert.Error(t, err)
}

func TestRenderChart(t *testing.T) {
	svg := string(RenderChart(testFrame(), "ETHBTC <test>"))

	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.True(t, strings.HasSuffix(svg, "</svg>\n"))
	assert.Contains(t, svg, "ETHBTC &lt;test&gt;")
	assert.Equal(t, 1, strings.Count(svg, `class="entry"`))
	assert.Equal(t, 1, strings.Count(svg, `class="exit"`))
	// close line plus one indicator line
	assert.Equal(t, 2, strings.Count(svg, "<polyline"))
	assert.NotContains(t, svg, "NaN")
}

func TestRenderChart_Empty(t *testing.T) {
	svg := string(RenderChart(&strategy.Frame{}, "empty"))
	assert.Contains(t, svg, "no data")
	assert.NotContains(t, svg, "<polyline")
}

func TestRenderChart_Decimates(t *testing.T) {
	n := 10 * maxLinePts
	f := &strategy.Frame{Close: make([]float64, n), Position: make([]int, n)}
	for i := range f.Close {
		f.Close[i] = float64(i%7) + 1
	}
	svg := string(RenderChart(f, "long"))
	assert.LessOrEqual(t, strings.Count(svg, ","), maxLinePts+1)
}

func TestWriter_Write(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	res := testResult()

	arts, err := NewWriter(store, true, nil).Write(ctx, res, nil)
	require.NoError(t, err)

	dir := path.Join("ETHBTC", "sma_crossover", res.ID.String())
	assert.Equal(t, dir, arts.Dir)
	assert.Equal(t, []string{
		path.Join(dir, MetricsFile),
		path.Join(dir, SummaryFile),
		path.Join(dir, FrameFile),
		path.Join(dir, ChartFile),
	}, arts.Files)

	listed, err := store.List(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, listed, 4)

	data, err := store.Read(ctx, path.Join(dir, MetricsFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "total_return,"))
}

func TestWriter_WithoutChartOrFrame(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	res := testResult()
	arts, err := NewWriter(store, false, nil).Write(context.Background(), res, nil)
	require.NoError(t, err)
	assert.Len(t, arts.Files, 3)

	res = testResult()
	res.Frame = nil
	arts, err = NewWriter(store, true, nil).Write(context.Background(), res, nil)
	require.NoError(t, err)
	assert.Len(t, arts.Files, 2)
}
