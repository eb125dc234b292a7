package bitfinex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"finex_go/internal/domain"
	"finex_go/internal/infra"
)

// FeedState tracks the lifecycle of a streaming feed.
type FeedState int32

const (
	FeedDisconnected FeedState = iota
	FeedConnecting
	FeedOpen
	FeedClosing
	FeedClosed
)

func (s FeedState) String() string {
	switch s {
	case FeedDisconnected:
		return "disconnected"
	case FeedConnecting:
		return "connecting"
	case FeedOpen:
		return "open"
	case FeedClosing:
		return "closing"
	case FeedClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Feed streams raw exchange frames over a websocket. Construction does no
// I/O; Connect opens the socket and Close tears everything down. Frames are
// delivered verbatim on Messages(), which is closed only by Close so a
// ranging consumer always unblocks.
type Feed struct {
	wsURL        string
	reconnect    bool
	readTimeout  time.Duration
	pingInterval time.Duration

	mu         sync.Mutex // guards conn, state, subs, connecting
	conn       *websocket.Conn
	state      FeedState
	subs       [][]byte      // subscription frames, replayed after a reconnect
	connecting chan struct{} // closed when an in-flight dial resolves

	writeMu sync.Mutex

	msgs      chan string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	disposed  atomic.Bool

	logger *slog.Logger
}

// NewFeed creates a feed in the disconnected state. No goroutines run and
// no connection is dialed until Connect.
func NewFeed(cfg *infra.Config) *Feed {
	bfx := cfg.API.Bitfinex

	return &Feed{
		wsURL:        bfx.WSURL,
		reconnect:    bfx.Reconnect,
		readTimeout:  feedReadTimeout,
		pingInterval: feedPingInterval,
		msgs:         make(chan string, bfx.FrameQueueSize),
		logger:       slog.Default().With("module", "bitfinex_feed"),
	}
}

// State reports the current lifecycle state.
func (f *Feed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Messages returns the stream of raw text frames.
func (f *Feed) Messages() <-chan string {
	return f.msgs
}

// Connect dials the exchange and starts the receive and ping workers.
// Calling Connect on an already open feed is a no-op; a call made while
// another Connect is still dialing waits for that dial to resolve, so a
// nil return always means the feed is open. Calling Connect after Close
// returns ErrFeedClosed.
func (f *Feed) Connect(ctx context.Context) error {
	if f.disposed.Load() {
		return domain.ErrFeedClosed
	}

	f.mu.Lock()
	switch f.state {
	case FeedOpen:
		f.mu.Unlock()
		return nil
	case FeedConnecting:
		wait := f.connecting
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
		if f.State() == FeedOpen {
			return nil
		}
		return domain.ErrNotConnected
	}
	f.state = FeedConnecting
	f.connecting = make(chan struct{})
	f.mu.Unlock()

	conn, err := f.dial(ctx)
	if err != nil {
		f.mu.Lock()
		f.state = FeedDisconnected
		close(f.connecting)
		f.mu.Unlock()
		return err
	}

	if f.disposed.Load() {
		// Close ran while the dial was in flight
		conn.Close()
		f.mu.Lock()
		f.state = FeedClosed
		close(f.connecting)
		f.mu.Unlock()
		return domain.ErrFeedClosed
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	f.mu.Lock()
	f.conn = conn
	f.cancel = cancel
	f.state = FeedOpen
	close(f.connecting)
	f.mu.Unlock()

	infra.GlobalMetrics.RecordFeedConnect()
	infra.GlobalMetrics.SetFeedOpen(true)
	f.logger.Info("feed connected", slog.String("url", f.wsURL))

	f.wg.Add(2)
	go f.receiveLoop(loopCtx, cancel)
	go f.pingLoop(loopCtx)

	return nil
}

func (f *Feed) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, feedHandshakeTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, f.wsURL, nil)
	if err != nil {
		return nil, domain.NewTransportError("feed_dial", 0, err)
	}

	// Pongs arrive inside ReadMessage without returning from it, so the
	// read deadline must be extended here or the ping loop cannot keep a
	// quiet connection alive.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.readTimeout))
	})

	return conn, nil
}

// SubscribeTrades requests the live trade channel for a pair. The feed must
// be open. The subscription survives reconnects.
func (f *Feed) SubscribeTrades(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: symbol must not be empty", domain.ErrInvalidArgument)
	}

	frame, err := json.Marshal(tradesSubscribeRequest{
		Event:   "subscribe",
		Channel: "trades",
		Symbol:  domain.NormalizeSymbol(symbol),
	})
	if err != nil {
		return err
	}
	return f.sendSubscription(frame)
}

// SubscribeCandles requests the candle channel for a pair and timeframe,
// e.g. timeframe "1m" on symbol "BTCUSD" subscribes key "trade:1m:tBTCUSD".
func (f *Feed) SubscribeCandles(symbol, timeframe string) error {
	if symbol == "" {
		return fmt.Errorf("%w: symbol must not be empty", domain.ErrInvalidArgument)
	}
	if timeframe == "" {
		return fmt.Errorf("%w: timeframe must not be empty", domain.ErrInvalidArgument)
	}

	frame, err := json.Marshal(candlesSubscribeRequest{
		Event:   "subscribe",
		Channel: "candles",
		Key:     fmt.Sprintf("trade:%s:%s", timeframe, domain.NormalizeSymbol(symbol)),
	})
	if err != nil {
		return err
	}
	return f.sendSubscription(frame)
}

func (f *Feed) sendSubscription(frame []byte) error {
	f.mu.Lock()
	if f.state != FeedOpen {
		f.mu.Unlock()
		return domain.ErrNotConnected
	}
	conn := f.conn
	f.subs = append(f.subs, frame)
	f.mu.Unlock()

	return f.writeMessage(conn, frame)
}

func (f *Feed) writeMessage(conn *websocket.Conn, data []byte) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(feedHandshakeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return domain.NewTransportError("feed_write", 0, err)
	}
	return nil
}

// receiveLoop reads frames until the connection drops, then either stops or
// redials with capped backoff when reconnect is enabled. The worker context
// is cancelled on every exit path so the ping loop never outlives the
// stream it serves.
func (f *Feed) receiveLoop(ctx context.Context, cancel context.CancelFunc) {
	defer f.wg.Done()
	defer cancel()

	for {
		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()

		f.readFrames(ctx, conn)
		infra.GlobalMetrics.SetFeedOpen(false)

		if ctx.Err() != nil || f.disposed.Load() {
			return
		}

		if !f.reconnect {
			f.mu.Lock()
			f.state = FeedClosed
			f.mu.Unlock()
			f.logger.Info("feed stream ended")
			return
		}

		if !f.redial(ctx) {
			return
		}
	}
}

// redial re-establishes the connection and replays subscription frames.
// Returns false when the feed is shutting down or retries are exhausted.
func (f *Feed) redial(ctx context.Context) bool {
	for retry := 0; retry < feedMaxRetries; retry++ {
		wait := infra.CalculateBackoff(retry)
		f.logger.Warn("feed reconnecting",
			slog.Int("retry", retry+1), slog.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}

		conn, err := f.dial(ctx)
		if err != nil {
			f.logger.Warn("feed redial failed", slog.Any("error", err))
			continue
		}

		f.mu.Lock()
		f.conn = conn
		f.state = FeedOpen
		subs := make([][]byte, len(f.subs))
		copy(subs, f.subs)
		f.mu.Unlock()

		infra.GlobalMetrics.RecordFeedConnect()
		infra.GlobalMetrics.SetFeedOpen(true)

		replayed := true
		for _, frame := range subs {
			if err := f.writeMessage(conn, frame); err != nil {
				f.logger.Warn("subscription replay failed", slog.Any("error", err))
				replayed = false
				break
			}
		}
		if replayed {
			f.logger.Info("feed reconnected", slog.Int("subscriptions", len(subs)))
			return true
		}
	}

	f.mu.Lock()
	f.state = FeedClosed
	f.mu.Unlock()
	f.logger.Error("feed reconnect attempts exhausted")
	return false
}

func (f *Feed) readFrames(ctx context.Context, conn *websocket.Conn) {
	for {
		conn.SetReadDeadline(time.Now().Add(f.readTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				f.logger.Info("feed closed by server")
			} else if ctx.Err() == nil && !f.disposed.Load() {
				f.logger.Warn("feed read failed", slog.Any("error", err))
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		select {
		case f.msgs <- string(data):
			infra.GlobalMetrics.RecordFrame()
		case <-ctx.Done():
			return
		}
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			conn := f.conn
			open := f.state == FeedOpen
			f.mu.Unlock()
			if !open || conn == nil {
				continue
			}
			deadline := time.Now().Add(feedHandshakeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				f.logger.Warn("feed ping failed", slog.Any("error", err))
			}
		}
	}
}

// Close shuts the feed down permanently: the socket is closed, workers are
// joined, and Messages() is closed so consumers drain and stop. Safe to
// call more than once.
func (f *Feed) Close() error {
	f.closeOnce.Do(func() {
		f.disposed.Store(true)

		f.mu.Lock()
		f.state = FeedClosing
		conn := f.conn
		cancel := f.cancel
		f.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if conn != nil {
			f.closeConnection(conn)
		}
		f.wg.Wait()
		close(f.msgs)

		f.mu.Lock()
		f.state = FeedClosed
		f.conn = nil
		f.mu.Unlock()

		infra.GlobalMetrics.SetFeedOpen(false)
		f.logger.Info("feed closed")
	})
	return nil
}

func (f *Feed) closeConnection(conn *websocket.Conn) {
	f.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	f.writeMu.Unlock()

	conn.Close()
}
