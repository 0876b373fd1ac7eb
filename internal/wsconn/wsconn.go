// Package wsconn provides a WebSocket client with reconnection.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

var (
	// ErrNotConnected is returned by Send while no connection is up.
	ErrNotConnected = errors.New("wsconn: not connected")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("wsconn: client closed")
)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite, negative disables reconnection
	PingInterval   time.Duration
	PongTimeout    time.Duration
	ReadTimeout    time.Duration // 0 = no per-message deadline
	WriteTimeout   time.Duration
	MaxMessageSize int64
	Headers        http.Header
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0,
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

// Client is a WebSocket client that redials with exponential backoff after
// the connection drops.
type Client struct {
	config Config

	mu    sync.RWMutex
	conn  *websocket.Conn
	state State

	handlerMu     sync.RWMutex
	onMessage     func(ctx context.Context, msg []byte)
	onStateChange func(state State, err error)

	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
}

// New creates a new WebSocket client.
func New(config Config) (*Client, error) {
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("wsconn %s: parse url: %w", config.Name, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("wsconn %s: unsupported scheme %q", config.Name, u.Scheme)
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config: config,
		state:  StateDisconnected,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// OnMessage registers the handler for incoming messages. Handlers run on the
// read goroutine.
func (c *Client) OnMessage(fn func(ctx context.Context, msg []byte)) {
	c.handlerMu.Lock()
	c.onMessage = fn
	c.handlerMu.Unlock()
}

// OnStateChange registers a callback for state transitions.
func (c *Client) OnStateChange(fn func(state State, err error)) {
	c.handlerMu.Lock()
	c.onStateChange = fn
	c.handlerMu.Unlock()
}

// Connect dials once.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.IsConnected() {
		return nil
	}

	c.setState(StateConnecting, nil)
	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected, err)
		return err
	}
	return nil
}

// ConnectWithRetry dials until it succeeds, ctx ends, or MaxReconnects
// attempts have failed.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = c.Connect(ctx); err == nil || errors.Is(err, ErrClosed) {
			return err
		}
		if c.config.MaxReconnects < 0 || (c.config.MaxReconnects > 0 && attempt+1 >= c.config.MaxReconnects) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(c.backoff(attempt)):
		}
	}
}

// Send writes a text message.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		if c.closed.Load() {
			return ErrClosed
		}
		return ErrNotConnected
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}
	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return fmt.Errorf("wsconn %s: write: %w", c.config.Name, err)
	}
	return nil
}

// SendJSON encodes v and sends it as a text message.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wsconn %s: marshal: %w", c.config.Name, err)
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether a connection is up.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close stops reconnection and closes the connection. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}
		c.setState(StateClosed, nil)
	})
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.config.URL, &websocket.DialOptions{
		HTTPHeader: c.config.Headers,
	})
	if err != nil {
		return fmt.Errorf("wsconn %s: dial: %w", c.config.Name, err)
	}
	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		conn.CloseNow()
		return ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	c.setState(StateConnected, nil)

	go c.readLoop(conn)
	if c.config.PingInterval > 0 {
		go c.pingLoop(conn)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		ctx := c.ctx
		var cancel context.CancelFunc = func() {}
		if c.config.ReadTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, c.config.ReadTimeout)
		}
		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			c.dropped(conn, err)
			return
		}

		c.handlerMu.RLock()
		fn := c.onMessage
		c.handlerMu.RUnlock()
		if fn != nil {
			fn(c.ctx, data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			current := c.conn
			c.mu.RUnlock()
			if current != conn {
				return
			}

			ctx, cancel := context.WithTimeout(c.ctx, c.config.PongTimeout)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				c.dropped(conn, fmt.Errorf("wsconn %s: ping: %w", c.config.Name, err))
				return
			}
		}
	}
}

// dropped tears down conn once and schedules a redial.
func (c *Client) dropped(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	conn.CloseNow()

	if c.closed.Load() {
		return
	}
	if c.config.MaxReconnects < 0 {
		c.setState(StateDisconnected, cause)
		return
	}
	c.setState(StateReconnecting, cause)
	go c.reconnect()
}

func (c *Client) reconnect() {
	for attempt := 0; ; attempt++ {
		if c.config.MaxReconnects > 0 && attempt >= c.config.MaxReconnects {
			c.setState(StateDisconnected, fmt.Errorf("wsconn %s: gave up after %d reconnects", c.config.Name, attempt))
			return
		}

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.backoff(attempt)):
		}

		err := c.dial(c.ctx)
		if err == nil || errors.Is(err, ErrClosed) {
			return
		}
		c.setState(StateReconnecting, err)
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.config.InitialBackoff
	for i := 0; i < attempt && d < c.config.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, c.config.MaxBackoff)
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	c.handlerMu.RLock()
	fn := c.onStateChange
	c.handlerMu.RUnlock()
	if fn != nil {
		fn(state, err)
	}
}
