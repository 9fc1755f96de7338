package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Connection states.
type State int

const (
	// StateDisconnected indicates no connection.
	StateDisconnected State = iota

	// StateConnecting indicates connection in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateClosing indicates graceful close in progress.
	StateClosing
)

// String returns the connection state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Transport errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrConnectTimeout   = errors.New("connect timeout")
)

// Defaults.
const (
	// DefaultPort is the port hubs listen on for local WebSocket access.
	DefaultPort = 17000

	// DefaultConnectTimeout bounds the dial plus WebSocket handshake.
	DefaultConnectTimeout = 15 * time.Second

	// DefaultPingInterval is the idle interval before a ping is sent.
	DefaultPingInterval = 60 * time.Second

	// DefaultMaxMessageSize is the largest frame accepted from the hub.
	// Item lists on large installations run to megabytes.
	DefaultMaxMessageSize = 256 * 1024 * 1024

	// closeTimeout bounds the graceful close handshake before the
	// socket is torn down hard.
	closeTimeout = 5 * time.Second
)

// Close codes used by the session layer, re-exported so callers do
// not need the websocket package.
const (
	CloseNormal    = websocket.CloseNormalClosure
	CloseGoingAway = websocket.CloseGoingAway
)

var bareIPv4 = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

// EndpointURL normalizes a configured endpoint. A bare IPv4 address is
// expanded to the default secure port; ws:// and wss:// URLs pass
// through unchanged.
func EndpointURL(endpoint string) (string, error) {
	if bareIPv4.MatchString(endpoint) {
		return fmt.Sprintf("wss://%s", net.JoinHostPort(endpoint, fmt.Sprint(DefaultPort))), nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return endpoint, nil
	default:
		return "", fmt.Errorf("invalid endpoint %q: scheme must be ws or wss", endpoint)
	}
}

// Config configures a hub transport.
type Config struct {
	// ConnectTimeout bounds dial plus handshake (default: 15s).
	ConnectTimeout time.Duration

	// PingInterval is the keepalive idle interval (default: 60s).
	PingInterval time.Duration

	// PongTimeout is how long to wait for a pong after sending a ping
	// (default: PingInterval / 2).
	PongTimeout time.Duration

	// MaxMessageSize is the read limit in bytes (default: 256MB).
	MaxMessageSize int64

	// TLS configures certificate verification relaxation and cipher
	// overrides. Nil means strict verification.
	TLS *TLSOptions
}

// withDefaults returns the config with zero fields filled in.
func (c Config) withDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongTimeout == 0 {
		c.PongTimeout = c.PingInterval / 2
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	return c
}

// Handler receives transport events. All callbacks run on the
// transport's read goroutine.
type Handler interface {
	// OnMessage is called for each received data frame.
	OnMessage(data []byte)

	// OnClose is called exactly once per connection when the socket is
	// gone, whatever the cause. The owner drives reconnection from here.
	OnClose(code int, reason string)

	// OnError is called for abnormal socket errors before OnClose.
	OnError(err error)
}

// Client wraps a single WebSocket connection to a hub.
type Client struct {
	config  Config
	url     string
	handler Handler

	state atomic.Int32

	mu        sync.Mutex
	conn      *websocket.Conn
	closing   bool
	closeDone chan struct{}

	writeMu   sync.Mutex
	keepalive *keepAlive
}

// New creates a transport for the given WebSocket URL (not yet connected).
func New(url string, config Config, handler Handler) *Client {
	c := &Client{
		config:  config.withDefaults(),
		url:     url,
		handler: handler,
	}
	c.state.Store(int32(StateDisconnected))
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// URL returns the endpoint this transport dials.
func (c *Client) URL() string {
	return c.url
}

// Open establishes the connection. It returns once the WebSocket
// handshake has completed and keepalive is armed, or with an error on
// timeout or handshake failure.
func (c *Client) Open(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyConnected
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.ConnectTimeout,
		TLSClientConfig:  buildTLSConfig(c.config.TLS),
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrConnectTimeout, c.url)
		}
		return fmt.Errorf("websocket dial %s: %w", c.url, err)
	}

	conn.SetReadLimit(c.config.MaxMessageSize)

	ka := newKeepAlive(c.config.PingInterval, c.config.PongTimeout,
		c.sendPing,
		c.Terminate,
	)

	// A ping from the hub counts as liveness; answer it and reset the
	// idle timer. Gorilla's default handler would answer but not reset.
	conn.SetPingHandler(func(appData string) error {
		ka.activity()
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		ka.pongReceived()
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.closing = false
	c.closeDone = make(chan struct{})
	c.keepalive = ka
	c.mu.Unlock()

	ka.start()
	go c.readLoop(conn, c.closeDone)

	c.state.Store(int32(StateConnected))
	return nil
}

// Send writes a data frame. It fails immediately when not connected.
func (c *Client) Send(data []byte) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close performs a graceful close. It is idempotent: repeated calls
// share the one in-flight close and all return when the socket is
// fully down. Closing an unconnected transport returns immediately.
func (c *Client) Close(code int, reason string) error {
	c.mu.Lock()
	conn := c.conn
	done := c.closeDone
	if conn == nil {
		c.mu.Unlock()
		if done != nil {
			<-done
		}
		return nil
	}
	if !c.closing {
		c.closing = true
		c.state.Store(int32(StateClosing))

		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(closeTimeout))
		c.writeMu.Unlock()

		// If the peer never completes the close handshake, tear the
		// socket down hard so waiters are released.
		go func() {
			select {
			case <-done:
			case <-time.After(closeTimeout):
				c.Terminate()
			}
		}()
	}
	c.mu.Unlock()

	<-done
	return nil
}

// Terminate is a hard abort, usable at any time. The read loop notices
// the dead socket and fires the close handler.
func (c *Client) Terminate() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// sendPing transmits a keepalive ping.
func (c *Client) sendPing() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}

// readLoop pumps inbound frames until the socket dies, then performs
// teardown and notifies the handler exactly once.
func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	var closeCode int
	var closeReason string

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			switch {
			case errors.As(err, &ce):
				closeCode = ce.Code
				closeReason = ce.Text
			default:
				closeCode = websocket.CloseAbnormalClosure
				if c.State() != StateClosing {
					c.handler.OnError(err)
				}
			}
			break
		}
		c.handler.OnMessage(data)
	}

	c.mu.Lock()
	if c.keepalive != nil {
		c.keepalive.stop()
		c.keepalive = nil
	}
	c.conn = nil
	c.closing = false
	c.mu.Unlock()

	_ = conn.Close()
	c.state.Store(int32(StateDisconnected))

	c.handler.OnClose(closeCode, closeReason)
	close(done)
}
