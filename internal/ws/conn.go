package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// Tuning defaults; overridden through Options.
const (
	defaultWriteTimeout   = 10 * time.Second
	defaultPongTimeout    = 60 * time.Second
	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 256
)

// ErrSendBufferFull is returned by Send when the peer cannot keep up; the
// broadcaster treats it as a transport failure for that peer only.
var ErrSendBufferFull = errors.New("send buffer full")

// ErrConnClosed is returned by Send after Close has been called.
var ErrConnClosed = errors.New("connection closed")

// Options tunes connection behaviour. The zero value picks the defaults.
type Options struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
	SendBuffer     int
	Clock          clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = defaultPongTimeout
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// Conn wraps one websocket transport together with its authenticated user.
// The user id is set once at the handshake and never changes. All writes go
// through a single writer goroutine so the transport never sees concurrent
// WriteMessage calls.
type Conn struct {
	ws     *websocket.Conn
	userID uuid.UUID
	name   string
	opts   Options

	sendCh    chan []byte
	closing   chan struct{}
	closeOnce sync.Once
}

// NewConn wraps an upgraded websocket connection and starts its writer.
func NewConn(wsConn *websocket.Conn, userID uuid.UUID, username string, opts Options) *Conn {
	opts = opts.withDefaults()
	c := &Conn{
		ws:      wsConn,
		userID:  userID,
		name:    username,
		opts:    opts,
		sendCh:  make(chan []byte, opts.SendBuffer),
		closing: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *Conn) UserID() uuid.UUID { return c.userID }
func (c *Conn) Username() string  { return c.name }

// Send enqueues data for delivery. It never blocks: a full buffer means the
// peer is too slow and the caller should drop the connection.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.closing:
		return ErrConnClosed
	default:
	}

	select {
	case c.sendCh <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close tears down the transport. Safe to call multiple times and from any
// goroutine; the read loop observes the closed transport and exits.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)
		_ = c.ws.Close()
	})
}

// CloseWithCode writes a close frame with the given code before tearing the
// transport down, so the peer can distinguish why it was disconnected.
func (c *Conn) CloseWithCode(code int, reason string) {
	deadline := c.opts.Clock.Now().Add(c.opts.WriteTimeout)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
	c.Close()
}

// writePump is the only goroutine allowed to write data frames. It also
// pings the peer to keep the read deadline moving on the other side.
func (c *Conn) writePump() {
	// Must fire before the peer's read deadline (PongTimeout) expires.
	ticker := c.opts.Clock.NewTicker(c.opts.PongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.sendCh:
			_ = c.ws.SetWriteDeadline(c.opts.Clock.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("Write failed, closing connection", "user_id", c.userID, "error", err)
				c.Close()
				return
			}
		case <-ticker.Chan():
			_ = c.ws.SetWriteDeadline(c.opts.Clock.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.closing:
			return
		}
	}
}
