package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voicefill/internal/domain"
	"voicefill/internal/ports"
)

var ErrSocketClosed = errors.New("socket is closed")

const (
	defaultWriteTimeout = 5 * time.Second
	closeFrameTimeout   = time.Second
)

// Dialer implements ports.Dialer on top of gorilla/websocket.
type Dialer struct {
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	header           http.Header
}

func NewDialer(handshakeTimeout time.Duration) *Dialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 5 * time.Second
	}
	return &Dialer{
		handshakeTimeout: handshakeTimeout,
		writeTimeout:     defaultWriteTimeout,
		header:           http.Header{},
	}
}

func (d *Dialer) Dial(ctx context.Context, url string) (ports.Socket, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, d.header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return &Conn{conn: conn, writeTimeout: d.writeTimeout}, nil
}

// Conn serializes writes on a gorilla connection, which allows one concurrent
// writer only. Close does not wait for a pending write.
type Conn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (c *Conn) WriteBinary(payload []byte) error {
	return c.write(websocket.BinaryMessage, payload)
}

func (c *Conn) WriteText(payload []byte) error {
	return c.write(websocket.TextMessage, payload)
}

func (c *Conn) write(messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrSocketClosed
	}
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		if c.closed.Load() {
			return ErrSocketClosed
		}
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (c *Conn) Read() (domain.FrameKind, []byte, error) {
	messageType, payload, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, err
	}
	if messageType == websocket.BinaryMessage {
		return domain.FrameBinary, payload, nil
	}
	return domain.FrameText, payload, nil
}

// Close sends a normal close frame when possible and releases the connection.
// A write blocked on a peer that stopped reading fails once the connection is closed.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeFrameTimeout),
		)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// IsCleanClose reports whether err is an orderly websocket shutdown.
func IsCleanClose(err error) bool {
	if err == nil {
		return false
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
