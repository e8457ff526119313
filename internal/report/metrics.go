package report

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/newthinker/crossbt/internal/stats"
)

// EncodeMetricsCSV renders a header and a single row in stats.Names
// order. Undefined metrics become empty cells.
func EncodeMetricsCSV(m stats.Metrics) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	entries := m.Entries()
	header := make([]string, len(entries))
	row := make([]string, len(entries))
	for i, e := range entries {
		header[i] = e.Name
		if e.Defined() {
			row[i] = ftoa(e.Value.Unwrap())
		}
	}

	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.Write(row); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func ftoa(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }
