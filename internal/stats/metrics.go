// Package stats computes the performance metrics of an evaluated strategy
// from its close prices and position series.
package stats

import (
	"fmt"
	"strconv"

	"github.com/moznion/go-optional"
)

// Metric names, in report column order.
const (
	TotalReturn  = "total_return"
	SharpeRatio  = "sharpe_ratio"
	MaxDrawdown  = "max_drawdown"
	WinRate      = "winrate"
	Expectancy   = "expectancy"
	ExposureTime = "exposure_time"
)

// Names lists every metric in report column order.
var Names = []string{TotalReturn, SharpeRatio, MaxDrawdown, WinRate, Expectancy, ExposureTime}

// Metrics holds the six performance figures of one run. A None value means
// the figure is mathematically undefined for this run, which is distinct
// from a legitimate zero.
type Metrics struct {
	TotalReturn  optional.Option[float64]
	SharpeRatio  optional.Option[float64]
	MaxDrawdown  optional.Option[float64]
	WinRate      optional.Option[float64]
	Expectancy   optional.Option[float64]
	ExposureTime optional.Option[float64]
}

// Entry is a named metric value.
type Entry struct {
	Name  string
	Value optional.Option[float64]
}

// Defined reports whether the value is present.
func (e Entry) Defined() bool {
	return e.Value.IsSome()
}

// String formats the value, "undefined" when absent.
func (e Entry) String() string {
	if e.Value.IsNone() {
		return "undefined"
	}
	return strconv.FormatFloat(e.Value.Unwrap(), 'g', 10, 64)
}

// Entries returns all metrics in report column order.
func (m Metrics) Entries() []Entry {
	return []Entry{
		{TotalReturn, m.TotalReturn},
		{SharpeRatio, m.SharpeRatio},
		{MaxDrawdown, m.MaxDrawdown},
		{WinRate, m.WinRate},
		{Expectancy, m.Expectancy},
		{ExposureTime, m.ExposureTime},
	}
}

// Get looks a metric up by name.
func (m Metrics) Get(name string) (optional.Option[float64], error) {
	for _, e := range m.Entries() {
		if e.Name == name {
			return e.Value, nil
		}
	}
	return optional.None[float64](), fmt.Errorf("unknown metric %q", name)
}

// Pointers maps each metric name to its value, nil when undefined.
// Used by encoders that represent absence as null.
func (m Metrics) Pointers() map[string]*float64 {
	out := make(map[string]*float64, len(Names))
	for _, e := range m.Entries() {
		if e.Value.IsSome() {
			v := e.Value.Unwrap()
			out[e.Name] = &v
		} else {
			out[e.Name] = nil
		}
	}
	return out
}

// FromPointers is the inverse of Pointers. Missing keys are undefined.
func FromPointers(values map[string]*float64) Metrics {
	get := func(name string) optional.Option[float64] {
		if v, ok := values[name]; ok && v != nil {
			return optional.Some(*v)
		}
		return optional.None[float64]()
	}
	return Metrics{
		TotalReturn:  get(TotalReturn),
		SharpeRatio:  get(SharpeRatio),
		MaxDrawdown:  get(MaxDrawdown),
		WinRate:      get(WinRate),
		Expectancy:   get(Expectancy),
		ExposureTime: get(ExposureTime),
	}
}
