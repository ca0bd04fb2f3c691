package netplay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/Cheese-Damas/internal/obslog"
	"github.com/park285/Cheese-Damas/internal/protocol"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type MessageCallback func(msg protocol.Message)

type StateCallback func(state ConnState)

var ErrNotConnected = errors.New("relay connection not open")

type callbackEntry struct {
	id       int
	callback MessageCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// Client is a relay connection. There is no reconnect: once the link drops
// the client moves to StateDisconnected and stays there.
type Client struct {
	url string

	conn   *websocket.Conn
	state  ConnState
	stateM sync.RWMutex
	writeM sync.Mutex

	msgCbs   []callbackEntry
	stateCbs []stateCallbackEntry
	nextCbID int
	cbM      sync.RWMutex

	pingInterval time.Duration
	writeTimeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

type ClientOption func(*Client)

// WithPingInterval sets the keep-alive period; zero disables it.
func WithPingInterval(d time.Duration) ClientOption {
	return func(c *Client) { c.pingInterval = d }
}

func WithWriteTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:          url,
		state:        StateDisconnected,
		pingInterval: 25 * time.Second,
		writeTimeout: 5 * time.Second,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Connect(ctx context.Context) error {
	c.stateM.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.stateM.Unlock()
		return nil
	}
	c.stateM.Unlock()

	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		c.setState(StateFailed)
		return err
	}
	c.conn = conn
	c.setState(StateConnected)
	obslog.L().Info("relay_connected", zap.String("url", c.url))

	c.wg.Add(1)
	go c.listen()
	if c.pingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop()
	}
	return nil
}

func (c *Client) listen() {
	defer c.wg.Done()
	for {
		var msg protocol.Message
		if err := wsjson.Read(c.rootCtx, c.conn, &msg); err != nil {
			if c.isStopping() {
				return
			}
			obslog.L().Warn("relay_read_error", zap.Error(err))
			c.setState(StateDisconnected)
			c.rootCancel()
			return
		}

		c.cbM.RLock()
		callbacks := make([]callbackEntry, len(c.msgCbs))
		copy(callbacks, c.msgCbs)
		c.cbM.RUnlock()
		for _, entry := range callbacks {
			entry.callback(msg)
		}
	}
}

// pingLoop sends the application keep-alive the relay ignores, followed by
// a WebSocket ping that must be answered within three seconds.
func (c *Client) pingLoop() {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.rootCtx.Done():
			return
		case <-t.C:
			err := c.Send(c.rootCtx, protocol.Ping())
			if err == nil {
				ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
				err = c.conn.Ping(ctx)
				cancel()
			}
			if err != nil {
				failures++
				if failures >= 2 {
					obslog.L().Warn("relay_ping_failed", zap.Error(err))
					c.setState(StateDisconnected)
					c.rootCancel()
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// Send writes one message; concurrent callers are serialized.
func (c *Client) Send(ctx context.Context, msg protocol.Message) error {
	if c.State() != StateConnected || c.conn == nil {
		return ErrNotConnected
	}
	c.writeM.Lock()
	defer c.writeM.Unlock()
	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c.conn, msg)
}

func (c *Client) OnMessage(cb MessageCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCbID++
	c.msgCbs = append(c.msgCbs, callbackEntry{id: c.nextCbID, callback: cb})
	return c.nextCbID
}

func (c *Client) RemoveMessageCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, cb := range c.msgCbs {
		if cb.id == id {
			c.msgCbs = append(c.msgCbs[:i], c.msgCbs[i+1:]...)
			break
		}
	}
}

func (c *Client) OnStateChange(cb StateCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCbID++
	c.stateCbs = append(c.stateCbs, stateCallbackEntry{id: c.nextCbID, callback: cb})
	return c.nextCbID
}

func (c *Client) State() ConnState {
	c.stateM.RLock()
	defer c.stateM.RUnlock()
	return c.state
}

func (c *Client) setState(state ConnState) {
	c.stateM.Lock()
	if c.state == state {
		c.stateM.Unlock()
		return
	}
	c.state = state
	c.stateM.Unlock()

	c.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(c.stateCbs))
	copy(callbacks, c.stateCbs)
	c.cbM.RUnlock()
	for _, entry := range callbacks {
		entry.callback(state)
	}
}

// Close shuts the connection down and waits for the reader to exit.
func (c *Client) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "close")
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if c.rootCancel != nil {
			c.rootCancel()
		}
		c.setState(StateClosed)
		return nil
	}
}

func (c *Client) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}
