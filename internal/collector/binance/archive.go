package binance

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/newthinker/crossbt/internal/collector"
	"github.com/newthinker/crossbt/internal/core"
	"go.uber.org/zap"
)

const archiveBaseURL = "https://data.binance.vision/data/spot/monthly/klines/"

var _ collector.Archive = (*ArchiveDownloader)(nil)

// DownloadRecorder receives one status per Fetch. *metrics.Registry
// satisfies it.
type DownloadRecorder interface {
	RecordDownload(status string)
}

// ArchiveConfig configures an ArchiveDownloader.
type ArchiveConfig struct {
	BaseURL      string
	Dir          string // destination of extracted CSVs
	MaxRetries   int
	InitialDelay time.Duration
}

// ArchiveDownloader fetches monthly kline zips from data.binance.vision
// and extracts the CSV they contain.
type ArchiveDownloader struct {
	cfg      ArchiveConfig
	client   *http.Client
	recorder DownloadRecorder
	logger   *zap.Logger
}

// NewArchiveDownloader creates the data dir if needed. client, recorder
// and logger may be nil.
func NewArchiveDownloader(cfg ArchiveConfig, client *http.Client, recorder DownloadRecorder, logger *zap.Logger) (*ArchiveDownloader, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = archiveBaseURL
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("archive dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveDownloader{cfg: cfg, client: client, recorder: recorder, logger: logger}, nil
}

// URL returns the archive location for one symbol and month:
// <base>/<SYM>/<interval>/<SYM>-<interval>-<YYYY-MM>.zip
func (d *ArchiveDownloader) URL(symbol, interval, month string) string {
	return fmt.Sprintf("%s/%s/%s/%s",
		strings.TrimSuffix(d.cfg.BaseURL, "/"), symbol, interval, archiveName(symbol, interval, month, ".zip"))
}

func archiveName(symbol, interval, month, ext string) string {
	return fmt.Sprintf("%s-%s-%s%s", symbol, interval, month, ext)
}

// Fetch downloads and extracts one month of klines, returning the CSV path.
// Transient failures (network errors, 5xx, 429) are retried with
// exponential backoff; any other status fails immediately.
func (d *ArchiveDownloader) Fetch(ctx context.Context, symbol, interval, month string) (string, error) {
	log := d.logger.With(zap.String("symbol", symbol), zap.String("month", month))
	zipPath := filepath.Join(d.cfg.Dir, fmt.Sprintf("%s_%s.zip", symbol, month))
	defer os.Remove(zipPath)

	url := d.URL(symbol, interval, month)
	policy := backoff.WithContext(
		backoff.WithMaxRetries(d.newBackOff(), uint64(d.cfg.MaxRetries)), ctx)

	err := backoff.RetryNotify(func() error {
		return d.download(ctx, url, zipPath)
	}, policy, func(err error, wait time.Duration) {
		log.Warn("archive download failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	})
	if err != nil {
		d.record("error")
		return "", core.WrapError(core.ErrDownloadFailed, fmt.Errorf("%s: %w", url, err))
	}

	csvPath, err := extractCSV(zipPath, d.cfg.Dir, archiveName(symbol, interval, month, ".csv"))
	if err != nil {
		d.record("bad_archive")
		return "", core.WrapError(core.ErrDownloadFailed, fmt.Errorf("%s: %w", zipPath, err))
	}

	d.record("ok")
	log.Info("archive extracted", zap.String("path", csvPath))
	return csvPath, nil
}

func (d *ArchiveDownloader) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialDelay
	b.MaxElapsedTime = 0
	return b
}

func (d *ArchiveDownloader) record(status string) {
	if d.recorder != nil {
		d.recorder.RecordDownload(status)
	}
}

func (d *ArchiveDownloader) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("fetching archive: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	f, err := os.Create(dest)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating %s: %w", dest, err))
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return f.Close()
}

// extractCSV unpacks every .csv entry of the zip into dir and returns the
// path of want, or of the only CSV when want is absent.
func extractCSV(zipPath, dir, want string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("opening zip: %w", err)
	}
	defer zr.Close()

	var extracted []string
	for _, f := range zr.File {
		name := filepath.Base(f.Name)
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		dest := filepath.Join(dir, name)
		if err := extractFile(f, dest); err != nil {
			return "", err
		}
		if name == want {
			return dest, nil
		}
		extracted = append(extracted, dest)
	}

	switch len(extracted) {
	case 0:
		return "", errors.New("no csv in archive")
	case 1:
		return extracted[0], nil
	default:
		return "", fmt.Errorf("%d csv files in archive, none named %s", len(extracted), want)
	}
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	return out.Close()
}
