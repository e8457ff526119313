package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/crossbt/internal/core"
)

// Kline CSV columns, as published in the monthly archives (no header).
var Columns = []string{
	"timestamp", "open", "high", "low", "close", "volume", "close_time",
	"quote_asset_volume", "number_of_trades", "taker_buy_base_asset_volume",
	"taker_buy_quote_asset_volume", "ignore",
}

// mandatory is the number of leading columns a row must carry.
const mandatory = 6

// microsThreshold separates millisecond from microsecond epochs. Archives
// from 2025 onward use microseconds.
const microsThreshold = 1e14

// ErrMissingField marks a row with an empty or unparseable mandatory field.
var ErrMissingField = errors.New("missing mandatory field")

// ParseCSV reads kline rows. A leading header row is tolerated. Any row
// with a missing mandatory field fails the whole file.
func ParseCSV(r io.Reader) ([]core.OHLCV, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var bars []core.OHLCV
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && isHeader(rec) {
			continue
		}

		bar, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// isHeader reports whether the first field is a non-numeric label.
func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	s := strings.TrimSpace(rec[0])
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err != nil
}

func parseRow(rec []string) (core.OHLCV, error) {
	if len(rec) < mandatory {
		return core.OHLCV{}, fmt.Errorf("%w: %d of %d columns", ErrMissingField, len(rec), mandatory)
	}

	var values [mandatory]float64
	for i := 0; i < mandatory; i++ {
		s := strings.TrimSpace(rec[i])
		if s == "" {
			return core.OHLCV{}, fmt.Errorf("%w: %s", ErrMissingField, Columns[i])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.OHLCV{}, fmt.Errorf("%w: %s %q", ErrMissingField, Columns[i], s)
		}
		values[i] = v
	}

	return core.OHLCV{
		Time:   parseEpoch(int64(values[0])),
		Open:   values[1],
		High:   values[2],
		Low:    values[3],
		Close:  values[4],
		Volume: values[5],
	}, nil
}

func parseEpoch(v int64) time.Time {
	if v > microsThreshold {
		return time.UnixMicro(v).UTC()
	}
	return time.UnixMilli(v).UTC()
}

// SymbolFromPath extracts the pair from an archive file name such as
// ETHBTC-1m-2025-02.csv.
func SymbolFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.Index(base, "-"); i > 0 {
		return base[:i]
	}
	return base
}
