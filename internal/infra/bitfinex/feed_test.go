package bitfinex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finex_go/internal/domain"
	"finex_go/internal/infra"
)

// newFeedServer runs a websocket endpoint whose handler gets the upgraded
// connection. Returns a ws:// URL pointing at it.
func newFeedServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newTestFeed(wsURL string, reconnect bool) *Feed {
	cfg := &infra.Config{}
	cfg.API.Bitfinex.WSURL = wsURL
	cfg.API.Bitfinex.FrameQueueSize = 16
	cfg.API.Bitfinex.Reconnect = reconnect
	return NewFeed(cfg)
}

func TestFeedImplementsStreamFeed(t *testing.T) {
	var _ domain.StreamFeed = (*Feed)(nil)
}

func TestFeedSubscribeTradesFrame(t *testing.T) {
	received := make(chan string, 1)
	url := newFeedServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- string(data)
		}
		// hold the connection open until the client disconnects
		conn.ReadMessage()
	})

	feed := newTestFeed(url, false)
	require.NoError(t, feed.Connect(context.Background()))
	defer feed.Close()

	require.NoError(t, feed.SubscribeTrades("BTCUSD"))

	select {
	case frame := <-received:
		assert.Equal(t, `{"event":"subscribe","channel":"trades","symbol":"tBTCUSD"}`, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription frame received")
	}
}

func TestFeedSubscribeCandlesFrame(t *testing.T) {
	received := make(chan string, 1)
	url := newFeedServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- string(data)
		}
		conn.ReadMessage()
	})

	feed := newTestFeed(url, false)
	require.NoError(t, feed.Connect(context.Background()))
	defer feed.Close()

	require.NoError(t, feed.SubscribeCandles("tBTCUSD", "1m"))

	select {
	case frame := <-received:
		assert.Equal(t, `{"event":"subscribe","channel":"candles","key":"trade:1m:tBTCUSD"}`, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription frame received")
	}
}

func TestFeedSubscribeBeforeConnect(t *testing.T) {
	feed := newTestFeed("ws://localhost:1", false)

	assert.ErrorIs(t, feed.SubscribeTrades("tBTCUSD"), domain.ErrNotConnected)
	assert.ErrorIs(t, feed.SubscribeCandles("tBTCUSD", "1m"), domain.ErrNotConnected)
}

func TestFeedSubscribeEmptyArguments(t *testing.T) {
	feed := newTestFeed("ws://localhost:1", false)

	assert.ErrorIs(t, feed.SubscribeTrades(""), domain.ErrInvalidArgument)
	assert.ErrorIs(t, feed.SubscribeCandles("", "1m"), domain.ErrInvalidArgument)
	assert.ErrorIs(t, feed.SubscribeCandles("tBTCUSD", ""), domain.ErrInvalidArgument)
}

func TestFeedDeliversMessagesInOrder(t *testing.T) {
	frames := []string{
		`{"event":"subscribed","channel":"trades","chanId":17}`,
		`[17,"te",[987654321,1700000000000,0.5,42000.5]]`,
		`[17,"tu",[987654321,1700000000000,0.5,42000.5]]`,
	}
	url := newFeedServer(t, func(conn *websocket.Conn) {
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		conn.ReadMessage()
	})

	feed := newTestFeed(url, false)
	require.NoError(t, feed.Connect(context.Background()))
	defer feed.Close()

	for _, want := range frames {
		select {
		case got := <-feed.Messages():
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatal("frame not delivered")
		}
	}
}

func TestFeedCloseUnblocksConsumer(t *testing.T) {
	url := newFeedServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})

	feed := newTestFeed(url, false)
	require.NoError(t, feed.Connect(context.Background()))

	done := make(chan struct{})
	go func() {
		for range feed.Messages() {
		}
		close(done)
	}()

	require.NoError(t, feed.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer still blocked after Close")
	}
	assert.Equal(t, FeedClosed, feed.State())
}

func TestFeedConnectAfterCloseFails(t *testing.T) {
	url := newFeedServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})

	feed := newTestFeed(url, false)
	require.NoError(t, feed.Connect(context.Background()))
	require.NoError(t, feed.Close())

	assert.ErrorIs(t, feed.Connect(context.Background()), domain.ErrFeedClosed)
}

func TestFeedCloseAfterServerCloseAndReconnect(t *testing.T) {
	var conns atomic.Int32
	url := newFeedServer(t, func(conn *websocket.Conn) {
		if conns.Add(1) == 1 {
			// first connection ends server-side right away
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
		conn.ReadMessage()
	})

	feed := newTestFeed(url, false)
	require.NoError(t, feed.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return feed.State() == FeedClosed
	}, 3*time.Second, 20*time.Millisecond)

	// the stream is restartable until the feed is disposed
	require.NoError(t, feed.Connect(context.Background()))
	require.Equal(t, FeedOpen, feed.State())

	done := make(chan struct{})
	go func() {
		feed.Close()
		close(done)
	}()

	// Close must join the workers of both connections, not hang on a
	// ping loop left over from the first one
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return after a reconnect")
	}
	assert.Equal(t, FeedClosed, feed.State())
}

func TestFeedPongKeepsQuietConnectionAlive(t *testing.T) {
	url := newFeedServer(t, func(conn *websocket.Conn) {
		// the default ping handler answers pings with pongs as long as
		// the server keeps pumping reads
		conn.ReadMessage()
	})

	feed := newTestFeed(url, false)
	feed.readTimeout = 200 * time.Millisecond
	feed.pingInterval = 50 * time.Millisecond
	require.NoError(t, feed.Connect(context.Background()))
	defer feed.Close()

	// several read deadlines pass with no data frames; pong replies to
	// the pings must keep extending the deadline
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, FeedOpen, feed.State())
}

func TestFeedConcurrentConnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// keep the handshake in flight long enough for a second Connect
		// to arrive while the first is still dialing
		time.Sleep(150 * time.Millisecond)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	t.Cleanup(server.Close)
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	feed := newTestFeed(url, false)
	defer feed.Close()

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- feed.Connect(context.Background())
		}()
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)
	}

	// both callers were told the feed is open, so both may subscribe
	require.Equal(t, FeedOpen, feed.State())
	require.NoError(t, feed.SubscribeTrades("BTCUSD"))
}

func TestFeedServerCloseEndsStream(t *testing.T) {
	url := newFeedServer(t, func(conn *websocket.Conn) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	})

	feed := newTestFeed(url, false)
	require.NoError(t, feed.Connect(context.Background()))
	defer feed.Close()

	require.Eventually(t, func() bool {
		return feed.State() == FeedClosed
	}, 3*time.Second, 20*time.Millisecond)
}

func TestFeedStateString(t *testing.T) {
	assert.Equal(t, "disconnected", FeedDisconnected.String())
	assert.Equal(t, "open", FeedOpen.String())
	assert.Equal(t, "closed", FeedClosed.String())
}
