package report

import (
	"time"

	"github.com/newthinker/crossbt/internal/backtest"
	"github.com/newthinker/crossbt/internal/stats"
	"gopkg.in/yaml.v3"
)

// Summary is the YAML run summary.
type Summary struct {
	RunID           string             `yaml:"run_id"`
	Strategy        string             `yaml:"strategy"`
	Description     string             `yaml:"description"`
	Params          map[string]any     `yaml:"params,omitempty"`
	Levels          map[string]float64 `yaml:"levels,omitempty"`
	Symbol          string             `yaml:"symbol"`
	Interval        string             `yaml:"interval"`
	Bars            int                `yaml:"bars"`
	Start           time.Time          `yaml:"start"`
	End             time.Time          `yaml:"end"`
	Metrics         SummaryMetrics     `yaml:"metrics"`
	AggregateReturn float64            `yaml:"aggregate_return"`
	Trades          TradeSummary       `yaml:"trades"`
	CreatedAt       time.Time          `yaml:"created_at"`
}

// SummaryMetrics lists the metrics in report order; nil encodes as null.
type SummaryMetrics struct {
	TotalReturn  *float64 `yaml:"total_return"`
	SharpeRatio  *float64 `yaml:"sharpe_ratio"`
	MaxDrawdown  *float64 `yaml:"max_drawdown"`
	WinRate      *float64 `yaml:"winrate"`
	Expectancy   *float64 `yaml:"expectancy"`
	ExposureTime *float64 `yaml:"exposure_time"`
}

type TradeSummary struct {
	Total   int     `yaml:"total"`
	Winning int     `yaml:"winning"`
	Losing  int     `yaml:"losing"`
	Open    int     `yaml:"open"`
	WinRate float64 `yaml:"win_rate"`
	Return  float64 `yaml:"return"`
}

// NewSummary builds the summary of a result.
func NewSummary(res *backtest.Result, params map[string]any) Summary {
	p := res.Metrics.Pointers()
	ts := res.TradeStats
	var levels map[string]float64
	if res.Frame != nil {
		levels = res.Frame.Levels
	}
	return Summary{
		RunID:       res.ID.String(),
		Strategy:    res.Strategy,
		Description: res.Description,
		Params:      params,
		Levels:      levels,
		Symbol:      res.Symbol,
		Interval:    res.Interval,
		Bars:        res.Bars,
		Start:       res.Start,
		End:         res.End,
		Metrics: SummaryMetrics{
			TotalReturn:  p[stats.TotalReturn],
			SharpeRatio:  p[stats.SharpeRatio],
			MaxDrawdown:  p[stats.MaxDrawdown],
			WinRate:      p[stats.WinRate],
			Expectancy:   p[stats.Expectancy],
			ExposureTime: p[stats.ExposureTime],
		},
		AggregateReturn: res.AggregateReturn,
		Trades: TradeSummary{
			Total:   ts.TotalTrades,
			Winning: ts.WinningTrades,
			Losing:  ts.LosingTrades,
			Open:    ts.OpenTrades,
			WinRate: ts.WinRate,
			Return:  ts.TotalReturn,
		},
		CreatedAt: res.CreatedAt,
	}
}

// EncodeSummary renders the summary as YAML.
func EncodeSummary(s Summary) ([]byte, error) {
	return yaml.Marshal(s)
}
