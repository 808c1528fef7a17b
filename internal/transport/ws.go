// Package transport adapts gorilla websockets to the framed message
// connection used by the bridge pumps.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/gorilla/websocket"
)

// ErrClosed is returned by reads and writes after Close.
var ErrClosed = errors.New("connection closed")

const closeGrace = time.Second

// Conn is a websocket carrying one JSON message per text frame.
// Reads must come from a single goroutine; writes are serialized internally.
// Close may be called from any goroutine and unblocks a pending read.
type Conn struct {
	ws   *websocket.Conn
	idle time.Duration

	writeMu   sync.Mutex
	closed    core.Fuse
	closeOnce sync.Once
	closeErr  error
}

// New wraps an established websocket. A positive idle duration becomes a
// deadline on every read and write.
func New(ws *websocket.Conn, idle time.Duration) *Conn {
	return &Conn{ws: ws, idle: idle}
}

// ReadMessage blocks for the next data frame.
func (c *Conn) ReadMessage() ([]byte, error) {
	if c.idle > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.idle))
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if c.closed.IsBroken() {
			return nil, ErrClosed
		}
		return nil, err
	}
	return data, nil
}

// WriteMessage sends data as one text frame.
func (c *Conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.IsBroken() {
		return ErrClosed
	}
	if c.idle > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.idle))
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and releases the socket. Safe to call repeatedly.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Break()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.closed.Watch()
}

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// IsNormalClosure reports whether err is the peer closing the socket cleanly.
func IsNormalClosure(err error) bool {
	return errors.Is(err, ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// DialOptions tune an outbound connection.
type DialOptions struct {
	HandshakeTimeout time.Duration // 0 waits as long as ctx allows
	IdleTimeout      time.Duration // 0 disables read/write deadlines
}

// Dial opens a client websocket.
func Dial(ctx context.Context, url string, header http.Header, opts DialOptions) (*Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return New(ws, opts.IdleTimeout), nil
}
