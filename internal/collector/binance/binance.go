// Package binance implements the collector interfaces against the Binance
// spot REST API and the data.binance.vision monthly kline archives.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/newthinker/crossbt/internal/collector"
	"github.com/newthinker/crossbt/internal/core"
	"go.uber.org/zap"
)

const (
	baseURL = "https://api.binance.com"

	// klinesLimit is the largest page the klines endpoint serves.
	klinesLimit = 1000

	statusTrading = "TRADING"
)

var _ collector.MarketData = (*Binance)(nil)

// Binance implements collector.MarketData for the Binance exchange
type Binance struct {
	client *binance.Client
	logger *zap.Logger
}

// Option configures a Binance client
type Option func(*Binance)

// WithBaseURL points the client at another host (for testing)
func WithBaseURL(url string) Option {
	return func(b *Binance) { b.client.BaseURL = url }
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(b *Binance) { b.client.HTTPClient = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Binance) { b.logger = l }
}

// New creates a new Binance provider. Only public endpoints are used, so no
// API key is needed.
func New(opts ...Option) *Binance {
	b := &Binance{
		client: binance.NewClient("", ""),
		logger: zap.NewNop(),
	}
	b.client.BaseURL = baseURL
	b.client.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Binance) Name() string {
	return "binance"
}

// TopLiquid ranks the TRADING pairs quoted in quoteAsset by 24h quote
// volume. Pairs with equal volume keep the ticker endpoint's order.
func (b *Binance) TopLiquid(ctx context.Context, quoteAsset string, n int) ([]collector.Pair, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching exchange info: %w", err))
	}

	trading := make(map[string]bool)
	for _, s := range info.Symbols {
		if s.QuoteAsset == quoteAsset && s.Status == statusTrading {
			trading[s.Symbol] = true
		}
	}

	tickers, err := b.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching 24h tickers: %w", err))
	}

	pairs := make([]collector.Pair, 0, len(trading))
	for _, t := range tickers {
		if !trading[t.Symbol] {
			continue
		}
		volume, err := strconv.ParseFloat(t.QuoteVolume, 64)
		if err != nil {
			b.logger.Warn("skipping ticker with bad quote volume",
				zap.String("symbol", t.Symbol),
				zap.String("quote_volume", t.QuoteVolume),
			)
			continue
		}
		pairs = append(pairs, collector.Pair{Symbol: t.Symbol, QuoteVolume: volume})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].QuoteVolume > pairs[j].QuoteVolume
	})
	if n > 0 && len(pairs) > n {
		pairs = pairs[:n]
	}

	b.logger.Info("ranked liquid pairs",
		zap.String("quote_asset", quoteAsset),
		zap.Int("trading", len(trading)),
		zap.Int("selected", len(pairs)),
	)
	return pairs, nil
}

// FetchHistory pages through the klines endpoint, continuing one
// millisecond after the last open time until a short page or end.
func (b *Binance) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	var data []core.OHLCV
	from := start.UnixMilli()
	to := end.UnixMilli()

	for from <= to {
		klines, err := b.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from).
			EndTime(to).
			Limit(klinesLimit).
			Do(ctx)
		if err != nil {
			return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching klines for %s: %w", symbol, err))
		}

		for _, k := range klines {
			bar, err := toOHLCV(k)
			if err != nil {
				return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("%s: %w", symbol, err))
			}
			data = append(data, bar)
		}

		if len(klines) < klinesLimit {
			break
		}
		from = klines[len(klines)-1].OpenTime + 1
	}

	b.logger.Debug("fetched history",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("bars", len(data)),
	)
	return data, nil
}

func toOHLCV(k *binance.Kline) (core.OHLCV, error) {
	fields := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return core.OHLCV{}, fmt.Errorf("kline at %d: %w", k.OpenTime, err)
		}
		values[i] = v
	}
	return core.OHLCV{
		Time:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
