package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one executed market trade as reported by the exchange.
// The sign of Amount encodes the side: positive for buys, negative for sells.
type Trade struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"` // UTC
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
}

// Candle is one OHLCV bar. Timestamp is the bar open instant (UTC).
type Candle struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	Close     decimal.Decimal `json:"close"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Volume    decimal.Decimal `json:"volume"`
}
