package bitfinex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"finex_go/internal/domain"
	"finex_go/internal/infra"
)

// Client is the public market-data REST client (Boundary Layer).
//
// Per-call failure policy is visible in each signature: bulk history calls
// (trades, candles) fail fast with a typed error, while the ticker calls
// are best-effort and report availability through their boolean result.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tickerRetries int
	tickerDelay   time.Duration
	logger        *slog.Logger
}

// NewClient creates a new market-data client from the application config.
func NewClient(cfg *infra.Config) *Client {
	bfx := cfg.API.Bitfinex

	return &Client{
		baseURL:       strings.TrimSuffix(bfx.RestURL, "/") + "/",
		tickerRetries: bfx.TickerRetries,
		tickerDelay:   time.Duration(bfx.TickerRetryDelayMS) * time.Millisecond,
		httpClient: &http.Client{
			Timeout: restTimeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger: slog.Default().With("module", "bitfinex_client"),
	}
}

// GetTrades returns executed trades for a symbol, most recent first as the
// endpoint orders them.
func (c *Client) GetTrades(ctx context.Context, symbol string, limit int) ([]domain.Trade, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol must not be empty", domain.ErrInvalidArgument)
	}

	body, err := c.getJSON(ctx, "trades", fmt.Sprintf("trades/%s/hist?limit=%d", symbol, limit))
	if err != nil {
		return nil, err
	}

	var rows [][]json.Number
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.MalformedDataError{Op: "trades", Detail: err.Error()}
	}

	trades := make([]domain.Trade, 0, len(rows))
	for _, row := range rows {
		// Wire tuple: [id, timestampMs, amount, price]
		if len(row) < 4 {
			return nil, &domain.MalformedDataError{
				Op:     "trades",
				Detail: fmt.Sprintf("expected 4 fields, got %d", len(row)),
			}
		}

		id, err := row[0].Int64()
		if err != nil {
			return nil, &domain.MalformedDataError{Op: "trades", Detail: err.Error()}
		}
		ms, err := row[1].Int64()
		if err != nil {
			return nil, &domain.MalformedDataError{Op: "trades", Detail: err.Error()}
		}
		amount, err := decimalField(row, 2)
		if err != nil {
			return nil, &domain.MalformedDataError{Op: "trades", Detail: err.Error()}
		}
		price, err := decimalField(row, 3)
		if err != nil {
			return nil, &domain.MalformedDataError{Op: "trades", Detail: err.Error()}
		}

		trades = append(trades, domain.Trade{
			ID:        id,
			Timestamp: time.UnixMilli(ms).UTC(),
			Amount:    amount,
			Price:     price,
		})
	}

	return trades, nil
}

// GetCandles returns OHLCV bars for a symbol and timeframe.
func (c *Client) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol must not be empty", domain.ErrInvalidArgument)
	}
	if timeframe == "" {
		return nil, fmt.Errorf("%w: timeframe must not be empty", domain.ErrInvalidArgument)
	}

	body, err := c.getJSON(ctx, "candles", fmt.Sprintf("candles/trade:%s:%s/hist?limit=%d", timeframe, symbol, limit))
	if err != nil {
		return nil, err
	}

	var rows [][]json.Number
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.MalformedDataError{Op: "candles", Detail: err.Error()}
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		// Wire tuple: [timestampMs, open, close, high, low, volume].
		// Close precedes high/low on the wire; the mapping keeps that order.
		if len(row) < 6 {
			return nil, &domain.MalformedDataError{
				Op:     "candles",
				Detail: fmt.Sprintf("expected 6 fields, got %d", len(row)),
			}
		}

		ms, err := row[0].Int64()
		if err != nil {
			return nil, &domain.MalformedDataError{Op: "candles", Detail: err.Error()}
		}

		candle := domain.Candle{Timestamp: time.UnixMilli(ms).UTC()}
		if candle.Open, err = decimalField(row, 1); err != nil {
			return nil, &domain.MalformedDataError{Op: "candles", Detail: err.Error()}
		}
		if candle.Close, err = decimalField(row, 2); err != nil {
			return nil, &domain.MalformedDataError{Op: "candles", Detail: err.Error()}
		}
		if candle.High, err = decimalField(row, 3); err != nil {
			return nil, &domain.MalformedDataError{Op: "candles", Detail: err.Error()}
		}
		if candle.Low, err = decimalField(row, 4); err != nil {
			return nil, &domain.MalformedDataError{Op: "candles", Detail: err.Error()}
		}
		if candle.Volume, err = decimalField(row, 5); err != nil {
			return nil, &domain.MalformedDataError{Op: "candles", Detail: err.Error()}
		}

		candles = append(candles, candle)
	}

	return candles, nil
}

// GetTicker fetches a single ticker, retrying transient failures with a
// fixed delay. Exhausting every attempt yields ok=false, never an error;
// callers treat absence as "data unavailable".
func (c *Client) GetTicker(ctx context.Context, symbol string) (*domain.Ticker, bool) {
	path := "ticker/" + symbol

	for attempt := 1; attempt <= c.tickerRetries; attempt++ {
		if attempt > 1 {
			infra.GlobalMetrics.RecordRetry()
			select {
			case <-ctx.Done():
				c.logger.Warn("ticker fetch cancelled",
					slog.String("symbol", symbol), slog.Int("attempt", attempt))
				return nil, false
			case <-time.After(c.tickerDelay):
			}
		}

		ticker, err := c.fetchTicker(ctx, symbol, path)
		if err != nil {
			c.logger.Warn("ticker fetch attempt failed",
				slog.String("symbol", symbol),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			continue
		}
		return ticker, true
	}

	infra.GlobalMetrics.RecordFailure()
	c.logger.Warn("ticker unavailable after all attempts",
		slog.String("symbol", symbol), slog.Int("attempts", c.tickerRetries))
	return nil, false
}

func (c *Client) fetchTicker(ctx context.Context, symbol, path string) (*domain.Ticker, error) {
	body, err := c.getJSON(ctx, "ticker", path)
	if err != nil {
		return nil, err
	}

	var fields []json.Number
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &domain.MalformedDataError{Op: "ticker", Detail: err.Error()}
	}
	if len(fields) < tickerMinFields {
		return nil, &domain.MalformedDataError{
			Op:     "ticker",
			Detail: fmt.Sprintf("expected at least %d fields, got %d", tickerMinFields, len(fields)),
		}
	}

	ticker := &domain.Ticker{Symbol: symbol}
	if ticker.Bid, err = decimalField(fields, tickerFieldBid); err != nil {
		return nil, &domain.MalformedDataError{Op: "ticker", Detail: err.Error()}
	}
	if ticker.Ask, err = decimalField(fields, tickerFieldAsk); err != nil {
		return nil, &domain.MalformedDataError{Op: "ticker", Detail: err.Error()}
	}
	if ticker.LastPrice, err = decimalField(fields, tickerFieldLast); err != nil {
		return nil, &domain.MalformedDataError{Op: "ticker", Detail: err.Error()}
	}
	if ticker.Volume, err = decimalField(fields, tickerFieldVolume); err != nil {
		return nil, &domain.MalformedDataError{Op: "ticker", Detail: err.Error()}
	}
	if ticker.High, err = decimalField(fields, tickerFieldHigh); err != nil {
		return nil, &domain.MalformedDataError{Op: "ticker", Detail: err.Error()}
	}
	if ticker.Low, err = decimalField(fields, tickerFieldLow); err != nil {
		return nil, &domain.MalformedDataError{Op: "ticker", Detail: err.Error()}
	}

	return ticker, nil
}

// GetAllTickers pulls the full tradable universe in one call. Best-effort:
// any transport or top-level parse failure yields ok=false; malformed rows
// are skipped with a diagnostic, not promoted to a whole-call failure.
func (c *Client) GetAllTickers(ctx context.Context) (domain.TickerSnapshot, bool) {
	body, err := c.getJSON(ctx, "tickers", "tickers?symbols=ALL")
	if err != nil {
		c.logger.Warn("ticker snapshot unavailable", slog.Any("error", err))
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		c.logger.Warn("ticker snapshot malformed", slog.Any("error", err))
		return nil, false
	}

	snapshot := make(domain.TickerSnapshot, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			c.logger.Debug("skipping malformed snapshot row", slog.Int("fields", len(row)))
			continue
		}
		symbol, ok := row[0].(string)
		if !ok {
			c.logger.Debug("skipping snapshot row without symbol")
			continue
		}
		if !strings.HasPrefix(symbol, domain.TradingPrefix) {
			c.logger.Debug("skipping non-trading instrument", slog.String("symbol", symbol))
			continue
		}
		if len(row) < snapshotMinFields {
			c.logger.Debug("skipping short snapshot row",
				slog.String("symbol", symbol), slog.Int("fields", len(row)))
			continue
		}

		ticker, err := parseSnapshotRow(symbol, row)
		if err != nil {
			c.logger.Debug("skipping unreadable snapshot row",
				slog.String("symbol", symbol), slog.Any("error", err))
			continue
		}
		snapshot[symbol] = ticker
	}

	return snapshot, true
}

func parseSnapshotRow(symbol string, row []any) (*domain.Ticker, error) {
	bid, err := decimalAt(row, snapshotFieldBid)
	if err != nil {
		return nil, err
	}
	ask, err := decimalAt(row, snapshotFieldAsk)
	if err != nil {
		return nil, err
	}
	last, err := decimalAt(row, snapshotFieldLast)
	if err != nil {
		return nil, err
	}
	high, err := decimalAt(row, snapshotFieldHigh)
	if err != nil {
		return nil, err
	}
	low, err := decimalAt(row, snapshotFieldLow)
	if err != nil {
		return nil, err
	}

	return &domain.Ticker{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		LastPrice: last,
		// Known quirk: volume duplicates the last-price column (index 7)
		// rather than reading index 8. Kept bit-for-bit; flagged as suspect.
		Volume: last,
		High:   high,
		Low:    low,
	}, nil
}

// getJSON issues a GET and returns the body, wrapping any failure in a
// typed transport error.
func (c *Client) getJSON(ctx context.Context, op, path string) ([]byte, error) {
	infra.GlobalMetrics.RecordRequest()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, domain.NewTransportError(op, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewTransportError(op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, domain.NewTransportError(op, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewTransportError(op, 0, err)
	}
	return body, nil
}
