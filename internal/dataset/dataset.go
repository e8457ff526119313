// Package dataset turns downloaded kline CSVs into validated per-symbol
// price series and caches them as Parquet.
package dataset

import (
	"fmt"
	"os"
	"sort"

	"github.com/newthinker/crossbt/internal/core"
	"go.uber.org/zap"
)

// Dataset holds one validated series per symbol.
type Dataset struct {
	Interval string
	series   map[string]core.PriceSeries
}

// New creates an empty dataset.
func New(interval string) *Dataset {
	return &Dataset{Interval: interval, series: make(map[string]core.PriceSeries)}
}

// Add stores a series, replacing any previous one for its symbol.
func (d *Dataset) Add(s core.PriceSeries) {
	d.series[s.Symbol] = s
}

// Get returns the series of symbol.
func (d *Dataset) Get(symbol string) (core.PriceSeries, bool) {
	s, ok := d.series[symbol]
	return s, ok
}

// Symbols returns the symbols in sorted order.
func (d *Dataset) Symbols() []string {
	out := make([]string, 0, len(d.series))
	for sym := range d.series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of symbols.
func (d *Dataset) Len() int {
	return len(d.series)
}

// Bars returns the total number of bars across symbols.
func (d *Dataset) Bars() int {
	var n int
	for _, s := range d.series {
		n += s.Len()
	}
	return n
}

// Loader parses and merges kline files.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a Loader. logger may be nil.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load parses every CSV, skipping files that cannot be read or that have a
// missing mandatory field, and merges the rest per symbol. The symbol is
// taken from the file name. No usable file yields core.ErrNoData.
func (l *Loader) Load(paths []string, interval string) (*Dataset, error) {
	grouped := make(map[string][]core.OHLCV)
	for _, path := range paths {
		bars, err := l.parseFile(path)
		if err != nil {
			l.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
			continue
		}
		sym := SymbolFromPath(path)
		grouped[sym] = append(grouped[sym], bars...)
		l.logger.Info("loaded file",
			zap.String("path", path),
			zap.String("symbol", sym),
			zap.Int("bars", len(bars)),
		)
	}

	ds := New(interval)
	for sym, bars := range grouped {
		s, err := Merge(sym, interval, bars)
		if err != nil {
			l.logger.Warn("skipping symbol", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		ds.Add(s)
	}

	if ds.Len() == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no valid data in %d files", len(paths)))
	}
	return ds, nil
}

func (l *Loader) parseFile(path string) ([]core.OHLCV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCSV(f)
}

// Merge sorts bars by time, keeps the last bar of any duplicated
// timestamp, and validates the resulting series.
func Merge(symbol, interval string, bars []core.OHLCV) (core.PriceSeries, error) {
	sorted := make([]core.OHLCV, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	merged := sorted[:0]
	for _, b := range sorted {
		if n := len(merged); n > 0 && merged[n-1].Time.Equal(b.Time) {
			merged[n-1] = b
			continue
		}
		merged = append(merged, b)
	}

	return core.NewPriceSeries(symbol, interval, merged)
}
