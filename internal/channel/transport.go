package channel

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one live, message-framed connection to a Status Source.
type Conn interface {
	// ReadMessage blocks until the next complete frame arrives or the
	// connection fails.
	ReadMessage() ([]byte, error)
	Close() error
}

// Transport opens connections to a Status Source.
type Transport interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// WebsocketTransport dials Status Sources over websocket.
type WebsocketTransport struct {
	HandshakeTimeout time.Duration
	Header           http.Header
}

// NewWebsocketTransport creates a websocket transport with the given handshake timeout.
func NewWebsocketTransport(timeout time.Duration) *WebsocketTransport {
	return &WebsocketTransport{HandshakeTimeout: timeout}
}

// Dial opens a websocket connection to endpoint.
func (t *WebsocketTransport) Dial(ctx context.Context, endpoint string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, t.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close sends a normal close frame before dropping the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
