package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TradingPrefix is the leading marker identifying a symbol as a spot
// trading pair (e.g. "tBTCUSD"). Funding instruments carry "f" instead
// and never appear in a snapshot.
const TradingPrefix = "t"

// HubCurrency is the intermediate currency used to convert between two
// currencies that lack a direct quoted pair.
const HubCurrency = "BTC"

// Ticker is a point-in-time view of best bid/ask and daily stats for one
// symbol. The single-symbol endpoint does not echo the symbol back, so the
// client fills Symbol from the request.
type Ticker struct {
	Symbol    string          `json:"symbol,omitempty"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	LastPrice decimal.Decimal `json:"last_price"`
	Volume    decimal.Decimal `json:"volume"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
}

// TickerSnapshot maps trading symbols to their latest ticker. It is rebuilt
// from scratch on every full-universe poll; every key starts with
// TradingPrefix (funding rows are filtered out during construction).
type TickerSnapshot map[string]*Ticker

// Symbols returns the symbol universe covered by the snapshot.
func (s TickerSnapshot) Symbols() []string {
	out := make([]string, 0, len(s))
	for sym := range s {
		out = append(out, sym)
	}
	return out
}

// NormalizeSymbol prefixes the trading marker if it is absent,
// e.g. "BTCUSD" -> "tBTCUSD".
func NormalizeSymbol(symbol string) string {
	if strings.HasPrefix(symbol, TradingPrefix) {
		return symbol
	}
	return TradingPrefix + symbol
}
