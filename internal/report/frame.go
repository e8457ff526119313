package report

import (
	"bytes"
	"fmt"

	"github.com/newthinker/crossbt/internal/strategy"
	"github.com/parquet-go/parquet-go"
)

// FrameRow is one bar of an evaluated frame as stored in frame.parquet.
type FrameRow struct {
	Timestamp  int64       `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Close      float64     `parquet:"close"`
	Signal     int32       `parquet:"signal"`
	Position   int32       `parquet:"position"`
	Indicators []Indicator `parquet:"indicators"`
}

// Indicator is a named indicator value; NaN where the window is not yet full.
type Indicator struct {
	Name  string  `parquet:"name,dict"`
	Value float64 `parquet:"value"`
}

// FrameRows flattens a frame into rows. Indicators are in sorted name order.
func FrameRows(f *strategy.Frame) []FrameRow {
	names := f.IndicatorNames()
	rows := make([]FrameRow, f.Len())
	for i := range rows {
		row := FrameRow{Close: f.Close[i]}
		if i < len(f.Times) {
			row.Timestamp = f.Times[i].UnixMilli()
		}
		if i < len(f.Signal) {
			row.Signal = int32(f.Signal[i])
		}
		if i < len(f.Position) {
			row.Position = int32(f.Position[i])
		}
		row.Indicators = make([]Indicator, len(names))
		for j, name := range names {
			row.Indicators[j] = Indicator{Name: name, Value: f.Indicators[name][i]}
		}
		rows[i] = row
	}
	return rows
}

// EncodeFrame renders the frame as snappy-compressed Parquet.
func EncodeFrame(f *strategy.Frame) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("nil frame")
	}
	var buf bytes.Buffer
	if err := parquet.Write(&buf, FrameRows(f), parquet.Compression(&parquet.Snappy)); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeFrame reads rows written by EncodeFrame.
func DecodeFrame(data []byte) ([]FrameRow, error) {
	rows, err := parquet.Read[FrameRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return rows, nil
}
