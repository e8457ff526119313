package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/newthinker/crossbt/internal/core"
	"github.com/parquet-go/parquet-go"
)

// Row is the Parquet schema of the dataset cache.
type Row struct {
	Symbol    string  `parquet:"symbol,dict"`
	Interval  string  `parquet:"interval,dict"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// Path returns <dir>/<name>.parquet.
func Path(dir, name string) string {
	return filepath.Join(dir, name+".parquet")
}

// WriteParquet stores the dataset as one snappy-compressed file, rows
// ordered by symbol then time.
func WriteParquet(path string, ds *Dataset) error {
	rows := make([]Row, 0, ds.Bars())
	for _, sym := range ds.Symbols() {
		s, _ := ds.Get(sym)
		for _, b := range s.Bars {
			rows = append(rows, Row{
				Symbol:    sym,
				Interval:  s.Interval,
				Timestamp: b.Time.UnixMilli(),
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, rows, parquet.Compression(&parquet.Snappy)); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("writing %s: %w", path, err))
	}
	return nil
}

// ReadParquet loads a cache written by WriteParquet.
func ReadParquet(path string) (*Dataset, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("reading %s: %w", path, err))
	}
	if len(rows) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s is empty", path))
	}

	grouped := make(map[string][]core.OHLCV)
	var order []string
	interval := rows[0].Interval
	for _, r := range rows {
		if _, ok := grouped[r.Symbol]; !ok {
			order = append(order, r.Symbol)
		}
		grouped[r.Symbol] = append(grouped[r.Symbol], core.OHLCV{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}

	ds := New(interval)
	for _, sym := range order {
		s, err := Merge(sym, interval, grouped[sym])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sym, err)
		}
		ds.Add(s)
	}
	return ds, nil
}

// Open loads a dataset from a Parquet cache or a single kline CSV.
func (l *Loader) Open(path, interval string) (*Dataset, error) {
	if filepath.Ext(path) == ".parquet" {
		return ReadParquet(path)
	}
	return l.Load([]string{path}, interval)
}
