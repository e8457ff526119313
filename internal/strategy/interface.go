package strategy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/stats"
)

// Config holds strategy configuration
type Config struct {
	Params map[string]any
}

// Frame holds everything a strategy derived from one price series. It is
// owned by the strategy and never aliases the input series.
type Frame struct {
	Symbol     string
	Times      []time.Time
	Close      []float64
	Indicators map[string][]float64 // aligned with Close, NaN where undefined
	Levels     map[string]float64   // scalar thresholds, e.g. avg_volatility
	Signal     []int
	Position   []int
}

// Len returns the number of bars in the frame
func (f *Frame) Len() int {
	return len(f.Close)
}

// IndicatorNames returns the indicator column names in sorted order.
func (f *Frame) IndicatorNames() []string {
	names := make([]string, 0, len(f.Indicators))
	for name := range f.Indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Strategy defines the interface for trading strategies.
//
// GenerateSignals is pure: it returns a new Frame and leaves the strategy
// untouched. Evaluate runs GenerateSignals and keeps the result as the
// strategy's current frame, replacing any previous one, so repeated calls
// with the same input are idempotent. Metrics fails with
// core.ErrNotEvaluated until Evaluate has succeeded.
type Strategy interface {
	Name() string
	Description() string
	GenerateSignals(series core.PriceSeries) (*Frame, error)
	Evaluate(ctx context.Context, series core.PriceSeries) (*Frame, error)
	Metrics() (stats.Metrics, error)
}

// ComputeMetrics runs the metrics calculator over an evaluated frame.
func ComputeMetrics(frame *Frame) (stats.Metrics, error) {
	if frame == nil {
		return stats.Metrics{}, core.ErrNotEvaluated
	}
	return stats.Compute(frame.Close, frame.Position)
}

// DecodeParams copies a loosely typed parameter map (as read from config
// files or flags) onto out. Unknown keys are rejected.
func DecodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("creating params decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return core.WrapError(core.ErrInvalidParams, err)
	}
	return nil
}
