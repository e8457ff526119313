// Package report renders a backtest result into its artifacts (metrics CSV,
// YAML summary, frame Parquet and SVG chart) and stores them.
package report

import (
	"context"
	"fmt"
	"path"

	"github.com/newthinker/crossbt/internal/backtest"
	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/storage/archive"
	"go.uber.org/zap"
)

// Artifact file names.
const (
	MetricsFile = "metrics.csv"
	SummaryFile = "summary.yaml"
	FrameFile   = "frame.parquet"
	ChartFile   = "chart.svg"
)

// Artifacts describes what was stored for one run.
type Artifacts struct {
	Dir      string   // storage path prefix
	Location string   // user-facing location of Dir
	Files    []string // storage paths written
}

// Writer persists run artifacts to a Storage backend.
type Writer struct {
	store  archive.Storage
	chart  bool
	logger *zap.Logger
}

// NewWriter creates a Writer. chart controls whether chart.svg is rendered.
func NewWriter(store archive.Storage, chart bool, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, chart: chart, logger: logger}
}

// Dir returns the storage prefix of a run: <symbol>/<strategy>/<run-id>.
func Dir(res *backtest.Result) string {
	return path.Join(res.Symbol, res.Strategy, res.ID.String())
}

// Write renders and stores every artifact of res. params are the strategy
// parameter overrides recorded in the summary.
func (w *Writer) Write(ctx context.Context, res *backtest.Result, params map[string]any) (*Artifacts, error) {
	dir := Dir(res)

	files := map[string]func() ([]byte, error){
		MetricsFile: func() ([]byte, error) { return EncodeMetricsCSV(res.Metrics) },
		SummaryFile: func() ([]byte, error) { return EncodeSummary(NewSummary(res, params)) },
	}
	order := []string{MetricsFile, SummaryFile}
	if res.Frame != nil {
		files[FrameFile] = func() ([]byte, error) { return EncodeFrame(res.Frame) }
		order = append(order, FrameFile)
		if w.chart {
			title := fmt.Sprintf("%s %s (%s)", res.Symbol, res.Description, res.Interval)
			files[ChartFile] = func() ([]byte, error) { return RenderChart(res.Frame, title), nil }
			order = append(order, ChartFile)
		}
	}

	out := &Artifacts{Dir: dir, Location: w.store.Location(dir)}
	for _, name := range order {
		data, err := files[name]()
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", name, err)
		}
		p := path.Join(dir, name)
		if err := w.store.Write(ctx, p, data); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("writing %s: %w", p, err))
		}
		out.Files = append(out.Files, p)
	}

	w.logger.Info("report written",
		zap.String("symbol", res.Symbol),
		zap.String("strategy", res.Strategy),
		zap.String("location", out.Location),
		zap.Int("files", len(out.Files)),
	)
	return out, nil
}
