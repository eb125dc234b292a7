package bitfinex

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =====================================================
// Bitfinex endpoint constants
// =====================================================

const (
	feedHandshakeTimeout = 10 * time.Second
	feedPingInterval     = 25 * time.Second
	feedReadTimeout      = 60 * time.Second
	feedMaxRetries       = 10

	restTimeout = 10 * time.Second
)

// Single-ticker payload positions: a flat numeric array of at least ten
// fields (bid, bidSize, ask, askSize, dailyChange, dailyChangeRelative,
// lastPrice, volume, high, low).
const (
	tickerFieldBid    = 0
	tickerFieldAsk    = 2
	tickerFieldLast   = 6
	tickerFieldVolume = 7
	tickerFieldHigh   = 8
	tickerFieldLow    = 9
	tickerMinFields   = 10
)

// Bulk-ticker rows open with the symbol string, shifting every numeric
// position up by one relative to the single-ticker layout.
const (
	snapshotFieldBid  = 1
	snapshotFieldAsk  = 3
	snapshotFieldLast = 7
	snapshotFieldHigh = 8
	snapshotFieldLow  = 9
	snapshotMinFields = 10
)

// =====================================================
// Subscription frames
// =====================================================

// Field order is part of the wire contract; struct order is preserved by
// encoding/json.
type tradesSubscribeRequest struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
}

type candlesSubscribeRequest struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Key     string `json:"key"`
}

// =====================================================
// Wire parsing helpers
// =====================================================

func decimalField(row []json.Number, i int) (decimal.Decimal, error) {
	return decimal.NewFromString(row[i].String())
}

// decimalAt reads a numeric cell from a mixed-type row.
func decimalAt(row []any, i int) (decimal.Decimal, error) {
	num, ok := row[i].(json.Number)
	if !ok {
		return decimal.Zero, fmt.Errorf("field %d is %T, not a number", i, row[i])
	}
	return decimal.NewFromString(num.String())
}
