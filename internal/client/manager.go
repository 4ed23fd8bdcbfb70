package client

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/nishchay-veer/canvas-app/internal/domain"
)

const (
	defaultMaxReconnectAttempts  = 5
	defaultInitialReconnectDelay = time.Second
)

// ErrNotConnected is returned by send methods while the transport is down.
// Actions are dropped, never queued on a stale handle.
var ErrNotConnected = errors.New("not connected")

// State describes the manager's connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateOffline is terminal: the reconnect budget is exhausted and no
	// further automatic attempts happen.
	StateOffline
	// StateClosed is terminal: the caller tore the session down on purpose.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateOffline:
		return "offline"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Callbacks routes inbound events to the caller. Any field may be nil.
// Swapping callbacks never requires reconnecting — see Manager.SetCallbacks.
type Callbacks struct {
	OnShape         func(shape domain.Shape)
	OnShapeDeleted  func(shapeID string)
	OnCanvasCleared func()
	OnUserJoined    func(userID string)
	OnUserLeft      func(userID string)
	OnChat          func(message string, user domain.UserSummary)
	OnError         func(message string)
	OnStateChange   func(state State)
}

// ManagerOptions configures a Manager. URL and Token are required.
type ManagerOptions struct {
	// URL is the websocket endpoint, e.g. "ws://host:8080/ws". The bearer
	// credential is appended as the token query parameter.
	URL    string
	Token  string
	RoomID int64

	MaxReconnectAttempts  int
	InitialReconnectDelay time.Duration
	Clock                 clockwork.Clock
	Dialer                *websocket.Dialer
}

func (o ManagerOptions) withDefaults() ManagerOptions {
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if o.InitialReconnectDelay <= 0 {
		o.InitialReconnectDelay = defaultInitialReconnectDelay
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	return o
}

// Manager maintains exactly one live websocket transport per logical
// session. It reconnects with exponential backoff on unexpected closure,
// re-joins the active room, and dispatches inbound events through a mutable
// callback set.
type Manager struct {
	opts ManagerOptions

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	attempts int
	timer    clockwork.Timer
	closed   bool
	roomID   int64

	callbacks atomic.Pointer[Callbacks]
}

// NewManager creates a manager. Call Connect to open the transport.
func NewManager(opts ManagerOptions) *Manager {
	opts = opts.withDefaults()
	m := &Manager{opts: opts, roomID: opts.RoomID}
	m.callbacks.Store(&Callbacks{})
	return m
}

// SetCallbacks atomically replaces the active callback set. The transport
// is untouched: handlers can be reconfigured mid-session without a
// reconnect.
func (m *Manager) SetCallbacks(cb Callbacks) {
	m.callbacks.Store(&cb)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the transport and joins the active room. A dial failure
// counts as an unexpected closure and enters the backoff schedule.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("manager is closed")
	}
	if m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	// A pending backoff timer would dial a second transport on top of
	// this one. Cancel it; this call owns the reconnect now.
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	return m.dial()
}

func (m *Manager) dial() error {
	conn, _, err := m.opts.Dialer.Dial(m.dialURL(), nil)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return errors.New("manager is closed")
	}
	if err != nil {
		slog.Debug("Dial failed", "error", err)
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return err
	}
	if m.conn != nil {
		// Another dial won the race. Keep the established transport and
		// abandon this one.
		m.mu.Unlock()
		_ = conn.Close()
		return nil
	}

	m.conn = conn
	m.attempts = 0
	m.setStateLocked(StateConnected)

	if m.roomID > 0 {
		joinErr := m.writeLocked(domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: m.roomID})
		if joinErr != nil {
			slog.Warn("Failed to join room after connect", "room_id", m.roomID, "error", joinErr)
		}
	}
	m.mu.Unlock()

	go m.readLoop(conn)
	return nil
}

func (m *Manager) dialURL() string {
	u := m.opts.URL
	if m.opts.Token != "" {
		sep := "?"
		if parsed, err := url.Parse(u); err == nil && parsed.RawQuery != "" {
			sep = "&"
		}
		u += sep + "token=" + url.QueryEscape(m.opts.Token)
	}
	return u
}

// readLoop pumps inbound messages until the transport fails or closes.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(conn, err)
			return
		}
		m.dispatch(raw)
	}
}

func (m *Manager) handleDisconnect(conn *websocket.Conn, err error) {
	_ = conn.Close()

	m.mu.Lock()
	if m.conn != conn {
		// A newer transport already replaced this one.
		m.mu.Unlock()
		return
	}
	m.conn = nil

	if m.closed {
		m.mu.Unlock()
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		// Deliberate teardown by the peer: do not resurrect the session.
		m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		return
	}

	slog.Debug("Connection lost", "error", err)
	m.scheduleReconnectLocked()
	m.mu.Unlock()
}

// scheduleReconnectLocked arms the backoff timer. Attempt n waits
// initialDelay * 2^n; once MaxReconnectAttempts is exhausted the manager
// goes terminally offline. Callers hold m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.opts.MaxReconnectAttempts {
		slog.Warn("Reconnect attempts exhausted", "attempts", m.attempts)
		m.setStateLocked(StateOffline)
		return
	}

	delay := backoffDelay(m.opts.InitialReconnectDelay, m.attempts)
	m.attempts++
	m.setStateLocked(StateConnecting)
	slog.Debug("Scheduling reconnect", "attempt", m.attempts, "delay", delay)

	m.timer = m.opts.Clock.AfterFunc(delay, func() {
		_ = m.dial()
	})
}

// backoffDelay returns initial * 2^attempt.
func backoffDelay(initial time.Duration, attempt int) time.Duration {
	return initial << uint(attempt)
}

// dispatch routes one inbound message to the current callback set. Unknown
// message types are ignored; events for other rooms are filtered out.
func (m *Manager) dispatch(raw []byte) {
	var env struct {
		Type    domain.MessageType `json:"type"`
		RoomID  int64              `json:"room_id"`
		Shape   *domain.Shape      `json:"shape"`
		ShapeID string             `json:"shape_id"`
		UserID  string             `json:"user_id"`
		Message string             `json:"message"`
		User    domain.UserSummary `json:"user"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Debug("Failed to parse inbound message", "error", err)
		return
	}

	cb := m.callbacks.Load()

	if env.Type == domain.MsgError {
		if cb.OnError != nil {
			cb.OnError(env.Message)
		}
		return
	}

	m.mu.Lock()
	room := m.roomID
	m.mu.Unlock()
	if env.RoomID != room {
		return
	}

	switch env.Type {
	case domain.MsgShape:
		if cb.OnShape != nil && env.Shape != nil {
			cb.OnShape(*env.Shape)
		}
	case domain.MsgDeleteShape:
		if cb.OnShapeDeleted != nil {
			cb.OnShapeDeleted(env.ShapeID)
		}
	case domain.MsgClearCanvas:
		if cb.OnCanvasCleared != nil {
			cb.OnCanvasCleared()
		}
	case domain.MsgUserJoined:
		if cb.OnUserJoined != nil {
			cb.OnUserJoined(env.UserID)
		}
	case domain.MsgUserLeft:
		if cb.OnUserLeft != nil {
			cb.OnUserLeft(env.UserID)
		}
	case domain.MsgChat:
		if cb.OnChat != nil {
			cb.OnChat(env.Message, env.User)
		}
	}
}

// SendShape submits a drawn shape to the server.
func (m *Manager) SendShape(shape domain.Shape) error {
	return m.send(domain.ClientMessage{Type: domain.MsgShape, RoomID: m.currentRoom(), Shape: &shape})
}

// DeleteShape asks the server to remove a shape by id.
func (m *Manager) DeleteShape(shapeID string) error {
	return m.send(domain.ClientMessage{Type: domain.MsgDeleteShape, RoomID: m.currentRoom(), ShapeID: shapeID})
}

// ClearCanvas asks the server to purge the room's canvas.
func (m *Manager) ClearCanvas() error {
	return m.send(domain.ClientMessage{Type: domain.MsgClearCanvas, RoomID: m.currentRoom()})
}

// SendChat submits a chat line to the room.
func (m *Manager) SendChat(message string) error {
	return m.send(domain.ClientMessage{Type: domain.MsgChat, RoomID: m.currentRoom(), Message: message})
}

func (m *Manager) currentRoom() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID
}

func (m *Manager) send(msg domain.ClientMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil || m.state != StateConnected {
		return ErrNotConnected
	}
	return m.writeLocked(msg)
}

// writeLocked marshals and writes one message; callers hold m.mu, which
// also serializes writes on the transport.
func (m *Manager) writeLocked(msg domain.ClientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return m.conn.WriteMessage(websocket.TextMessage, data)
}

// Close tears the session down on purpose: leaves the room, closes with the
// normal-closure code so neither side schedules a reconnect, and cancels
// any pending reconnect timer.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	if m.conn != nil {
		if m.roomID > 0 {
			_ = m.writeLocked(domain.ClientMessage{Type: domain.MsgLeaveRoom, RoomID: m.roomID})
		}
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
		_ = m.conn.WriteControl(websocket.CloseMessage, closeMsg, m.opts.Clock.Now().Add(time.Second))
		_ = m.conn.Close()
		m.conn = nil
	}

	m.setStateLocked(StateClosed)
	m.mu.Unlock()
}

// setStateLocked updates state and fires OnStateChange outside the lock.
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	cb := m.callbacks.Load()
	if cb.OnStateChange != nil {
		go cb.OnStateChange(s)
	}
}
