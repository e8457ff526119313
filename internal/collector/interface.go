package collector

import (
	"context"
	"time"

	"github.com/newthinker/crossbt/internal/core"
)

// Pair is a tradable symbol ranked by 24h quote volume.
type Pair struct {
	Symbol      string
	QuoteVolume float64
}

// MarketData lists tradable pairs and serves kline history.
type MarketData interface {
	Name() string

	// TopLiquid returns the n TRADING pairs quoted in quoteAsset with the
	// highest 24h quote volume, highest first.
	TopLiquid(ctx context.Context, quoteAsset string, n int) ([]Pair, error)

	// FetchHistory returns the bars of symbol opened in [start, end].
	FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error)
}

// Archive retrieves one month of klines as a CSV file on local disk.
type Archive interface {
	// Fetch returns the path of the extracted CSV.
	Fetch(ctx context.Context, symbol, interval, month string) (string, error)
}
