package domain

import "context"

// TickerSource supplies the full-universe pricing basis for a valuation
// pass. The boolean result distinguishes "data unavailable" from success;
// availability failures are expected and never surface as errors.
type TickerSource interface {
	GetAllTickers(ctx context.Context) (TickerSnapshot, bool)
}

// MarketDataClient is the request/response side of the exchange API.
type MarketDataClient interface {
	TickerSource
	GetTrades(ctx context.Context, symbol string, limit int) ([]Trade, error)
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	GetTicker(ctx context.Context, symbol string) (*Ticker, bool)
}

// StreamFeed is a persistent push connection delivering raw exchange
// frames. Consumers drain Messages until it is closed by Close.
type StreamFeed interface {
	Connect(ctx context.Context) error
	SubscribeTrades(symbol string) error
	SubscribeCandles(symbol, timeframe string) error
	Messages() <-chan string
	Close() error
}
