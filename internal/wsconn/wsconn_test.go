package wsconn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

// newServer runs handle for every accepted connection and returns a ws:// URL.
func newServer(t *testing.T, handle func(ctx context.Context, conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		handle(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echo(ctx context.Context, conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, typ, data); err != nil {
			return
		}
	}
}

// drain blocks until the client goes away.
func drain(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func testConfig(url string) Config {
	cfg := DefaultConfig(url, "test-venue")
	cfg.PingInterval = 0
	cfg.InitialBackoff = 20 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond
	return cfg
}

// collector gathers inbound frames for assertions.
type collector struct {
	mu   sync.Mutex
	msgs []string
	got  chan struct{}
}

func newCollector() *collector { return &collector{got: make(chan struct{}, 64)} }

func (c *collector) handle(_ context.Context, msg []byte) {
	c.mu.Lock()
	c.msgs = append(c.msgs, string(msg))
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []string {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of %d messages", i, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

func TestNew_RejectsNonWebSocketURL(t *testing.T) {
	_, err := New(DefaultConfig("https://api.example.com", "alpha"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestConnect_ReceivesPushedQuotes(t *testing.T) {
	url := newServer(t, func(ctx context.Context, conn *websocket.Conn) {
		for _, q := range []string{
			`{"s":"ETHUSDT","b":"3000.10","a":"3000.20"}`,
			`{"s":"ETHUSDT","b":"3000.15","a":"3000.25"}`,
		} {
			if err := conn.Write(ctx, websocket.MessageText, []byte(q)); err != nil {
				return
			}
		}
		drain(ctx, conn)
	})

	client, err := New(testConfig(url))
	require.NoError(t, err)
	defer client.Close()

	col := newCollector()
	client.OnMessage(col.handle)
	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, client.IsConnected())

	msgs := col.wait(t, 2)
	assert.Contains(t, msgs[0], `"b":"3000.10"`)
	assert.Contains(t, msgs[1], `"b":"3000.15"`)
}

func TestConnect_FailureLeavesDisconnected(t *testing.T) {
	client, err := New(testConfig("ws://127.0.0.1:1"))
	require.NoError(t, err)
	defer client.Close()

	var states []State
	client.OnStateChange(func(s State, _ error) { states = append(states, s) })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = client.Connect(ctx)

	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeWebSocketConnectionError))
	assert.Equal(t, StateDisconnected, client.State())
	assert.Equal(t, []State{StateConnecting, StateDisconnected}, states)
}

func TestSendJSON_Subscribe(t *testing.T) {
	client, err := New(testConfig(newServer(t, echo)))
	require.NoError(t, err)
	defer client.Close()

	col := newCollector()
	client.OnMessage(col.handle)
	require.NoError(t, client.Connect(context.Background()))

	sub := map[string]any{"method": "SUBSCRIBE", "params": []string{"ethusdt@bookTicker"}, "id": 1}
	require.NoError(t, client.SendJSON(context.Background(), sub))

	msgs := col.wait(t, 1)
	assert.JSONEq(t, `{"method":"SUBSCRIBE","params":["ethusdt@bookTicker"],"id":1}`, msgs[0])
}

func TestSend_ConcurrentWriters(t *testing.T) {
	client, err := New(testConfig(newServer(t, echo)))
	require.NoError(t, err)
	defer client.Close()

	col := newCollector()
	client.OnMessage(col.handle)
	require.NoError(t, client.Connect(context.Background()))

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, client.Send(context.Background(), []byte("ping")))
		}()
	}
	wg.Wait()

	assert.Len(t, col.wait(t, writers), writers)
}

func TestSend_WhenDisconnected(t *testing.T) {
	client, err := New(testConfig("ws://127.0.0.1:1"))
	require.NoError(t, err)
	defer client.Close()

	err = client.Send(context.Background(), []byte("x"))
	assert.True(t, apperror.HasCode(err, apperror.CodeWebSocketSendError))
}

func TestReconnect_AfterServerDrop(t *testing.T) {
	var accepts atomic.Int32
	url := newServer(t, func(ctx context.Context, conn *websocket.Conn) {
		if accepts.Add(1) == 1 {
			return
		}
		echo(ctx, conn)
	})

	client, err := New(testConfig(url))
	require.NoError(t, err)
	defer client.Close()

	reconnected := make(chan struct{}, 1)
	var dropped atomic.Bool
	client.OnStateChange(func(s State, _ error) {
		switch {
		case s == StateReconnecting:
			dropped.Store(true)
		case s == StateConnected && dropped.Load():
			select {
			case reconnected <- struct{}{}:
			default:
			}
		}
	})
	require.NoError(t, client.Connect(context.Background()))

	select {
	case <-reconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("client did not reconnect")
	}
	assert.GreaterOrEqual(t, accepts.Load(), int32(2))
}

func TestReadLimit_DropsOversizedFrame(t *testing.T) {
	url := newServer(t, func(ctx context.Context, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(strings.Repeat("x", 1024)))
		drain(ctx, conn)
	})

	cfg := testConfig(url)
	cfg.MaxMessageSize = 64
	cfg.MaxReconnects = 1
	client, err := New(cfg)
	require.NoError(t, err)
	defer client.Close()

	var delivered atomic.Bool
	client.OnMessage(func(context.Context, []byte) { delivered.Store(true) })
	require.NoError(t, client.Connect(context.Background()))

	assert.Eventually(t, func() bool { return !client.IsConnected() }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, delivered.Load())
}

func TestClose_Idempotent(t *testing.T) {
	client, err := New(testConfig(newServer(t, echo)))
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.Equal(t, StateClosed, client.State())

	err = client.Connect(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeWebSocketClosed))
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, 30*time.Second))
	assert.Equal(t, 30*time.Second, nextBackoff(20*time.Second, 30*time.Second))
}
