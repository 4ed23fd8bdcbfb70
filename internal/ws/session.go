package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nishchay-veer/canvas-app/internal/domain"
	"github.com/nishchay-veer/canvas-app/internal/metrics"
)

const storeTimeout = 5 * time.Second

// Session drives one authenticated connection through its lifetime: it owns
// the read loop, validates inbound messages against room membership, calls
// the durable store, and triggers broadcasts. Messages on one connection are
// handled strictly in arrival order; many sessions run concurrently.
type Session struct {
	conn        *Conn
	registry    *Registry
	broadcaster *Broadcaster
	shapes      domain.ShapeRepository
	chats       domain.ChatRepository
	user        domain.UserSummary
	metrics     *metrics.WebSocketMetrics
	log         *slog.Logger
}

// SessionDeps bundles the collaborators every session shares.
type SessionDeps struct {
	Registry    *Registry
	Broadcaster *Broadcaster
	Shapes      domain.ShapeRepository
	Chats       domain.ChatRepository
	Metrics     *metrics.WebSocketMetrics
}

// NewSession creates a session for an already-authenticated connection.
func NewSession(conn *Conn, user domain.UserSummary, deps SessionDeps) *Session {
	return &Session{
		conn:        conn,
		registry:    deps.Registry,
		broadcaster: deps.Broadcaster,
		shapes:      deps.Shapes,
		chats:       deps.Chats,
		user:        user,
		metrics:     deps.Metrics,
		log: slog.Default().With(
			"user_id", user.ID.String(),
			"username", user.Username,
		),
	}
}

// Run registers the connection and blocks reading messages until the
// transport closes. On exit the connection is removed from every room it
// joined and a user_left is fanned out to each, atomically with respect to
// other membership operations.
func (s *Session) Run(ctx context.Context) error {
	if err := s.registry.Register(s.conn); err != nil {
		s.conn.Close()
		return err
	}
	if s.metrics != nil {
		s.metrics.ActiveConnections.Inc()
	}
	s.log.Info("Session started")

	defer s.teardown()

	s.conn.ws.SetReadLimit(s.conn.opts.MaxMessageSize)
	_ = s.conn.ws.SetReadDeadline(s.conn.opts.Clock.Now().Add(s.conn.opts.PongTimeout))
	s.conn.ws.SetPongHandler(func(string) error {
		return s.conn.ws.SetReadDeadline(s.conn.opts.Clock.Now().Add(s.conn.opts.PongTimeout))
	})

	for {
		msgType, raw, err := s.conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("Connection closed unexpectedly", "error", err)
			} else {
				s.log.Debug("Connection closed", "error", err)
			}
			return nil
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.handleMessage(ctx, raw)
	}
}

// teardown unregisters the connection and announces its departure to every
// room it was still in.
func (s *Session) teardown() {
	rooms := s.registry.Unregister(s.conn)
	for _, roomID := range rooms {
		s.broadcaster.Broadcast(roomID, domain.NewUserLeftMessage(roomID, s.user.ID.String()), nil)
	}
	s.conn.Close()
	if s.metrics != nil {
		s.metrics.ActiveConnections.Dec()
		s.metrics.ActiveRooms.Set(float64(s.registry.RoomCount()))
	}
	s.log.Info("Session ended", "rooms_left", len(rooms))
}

// handleMessage parses and dispatches one inbound message. Malformed or
// invalid payloads get an error reply to the sender only; the connection
// stays open. Only auth and transport failures terminate a session.
func (s *Session) handleMessage(ctx context.Context, raw []byte) {
	var msg domain.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.log.Debug("Malformed message", "error", err)
		s.sendError("malformed message")
		return
	}
	if err := msg.Validate(); err != nil {
		s.log.Debug("Invalid message", "type", msg.Type, "error", err)
		s.sendError(err.Error())
		return
	}

	switch msg.Type {
	case domain.MsgJoinRoom:
		s.handleJoin(msg.RoomID)
	case domain.MsgLeaveRoom:
		s.handleLeave(msg.RoomID)
	case domain.MsgShape:
		s.handleShape(ctx, msg.RoomID, *msg.Shape)
	case domain.MsgDeleteShape:
		s.handleDeleteShape(ctx, msg.RoomID, msg.ShapeID)
	case domain.MsgClearCanvas:
		s.handleClearCanvas(ctx, msg.RoomID)
	case domain.MsgChat:
		s.handleChat(ctx, msg.RoomID, msg.Message)
	}
}

func (s *Session) handleJoin(roomID int64) {
	if err := s.registry.Join(s.conn, roomID); err != nil {
		if errors.Is(err, ErrRoomLimitExceeded) {
			s.log.Warn("Join rejected by room limit", "room_id", roomID)
			s.sendError("room limit reached")
			return
		}
		s.log.Error("Join failed", "room_id", roomID, "error", err)
		s.sendError("join failed")
		return
	}
	if s.metrics != nil {
		s.metrics.ActiveRooms.Set(float64(s.registry.RoomCount()))
	}
	s.log.Info("Joined room", "room_id", roomID)
	s.broadcaster.Broadcast(roomID, domain.NewUserJoinedMessage(roomID, s.user.ID.String()), s.conn)
}

func (s *Session) handleLeave(roomID int64) {
	if err := s.registry.Leave(s.conn, roomID); err != nil {
		s.log.Error("Leave failed", "room_id", roomID, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.ActiveRooms.Set(float64(s.registry.RoomCount()))
	}
	s.log.Info("Left room", "room_id", roomID)
	// No exclusion: the sender already left, so it is not in the member set.
	s.broadcaster.Broadcast(roomID, domain.NewUserLeftMessage(roomID, s.user.ID.String()), nil)
}

func (s *Session) handleShape(ctx context.Context, roomID int64, draft domain.Shape) {
	if !s.requireMembership(roomID) {
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	persisted, err := s.shapes.Create(storeCtx, roomID, s.user.ID, draft)
	if err != nil {
		s.storeFailed("create shape", roomID, err)
		return
	}

	// The sender is included on purpose: its broadcast copy is the
	// server-confirmed canonical shape, deduplicated client-side by id.
	s.broadcaster.Broadcast(roomID, domain.NewShapeMessage(roomID, *persisted), nil)
}

func (s *Session) handleDeleteShape(ctx context.Context, roomID int64, shapeID string) {
	if !s.requireMembership(roomID) {
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := s.shapes.Delete(storeCtx, roomID, shapeID); err != nil {
		s.storeFailed("delete shape", roomID, err)
		return
	}

	s.broadcaster.Broadcast(roomID, domain.NewDeleteShapeMessage(roomID, shapeID), nil)
}

func (s *Session) handleClearCanvas(ctx context.Context, roomID int64) {
	if !s.requireMembership(roomID) {
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := s.shapes.DeleteAllInRoom(storeCtx, roomID); err != nil {
		s.storeFailed("clear canvas", roomID, err)
		return
	}

	s.broadcaster.Broadcast(roomID, domain.NewClearCanvasMessage(roomID), nil)
}

func (s *Session) handleChat(ctx context.Context, roomID int64, message string) {
	if !s.requireMembership(roomID) {
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if _, err := s.chats.Create(storeCtx, roomID, s.user.ID, message); err != nil {
		s.storeFailed("create chat", roomID, err)
		return
	}

	s.broadcaster.Broadcast(roomID, domain.NewChatBroadcast(roomID, message, s.user), nil)
}

// requireMembership rejects room-scoped operations from connections that
// never joined the room. The rejection goes to the sender only.
func (s *Session) requireMembership(roomID int64) bool {
	if s.registry.IsMember(s.conn, roomID) {
		return true
	}
	s.log.Warn("Operation on room without membership", "room_id", roomID)
	s.sendError("not a member of this room")
	return false
}

// storeFailed logs a failed persistence call and reports it to the sender.
// Nothing is broadcast, so peers never see unpersisted state.
func (s *Session) storeFailed(op string, roomID int64, err error) {
	storeErr := domain.NewStoreError(op, err)
	s.log.Error("Store call failed", "op", op, "room_id", roomID, "error", err)
	if s.metrics != nil {
		s.metrics.StoreFailures.Inc()
	}
	s.sendError(storeErr.Error())
}

func (s *Session) sendError(message string) {
	data, err := json.Marshal(domain.NewErrorMessage(message))
	if err != nil {
		return
	}
	// Best effort: if the sender's buffer is full the error is dropped.
	_ = s.conn.Send(data)
}
