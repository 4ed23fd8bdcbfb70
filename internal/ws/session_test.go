package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nishchay-veer/canvas-app/internal/domain"
)

type fakeShapeRepo struct {
	mu     sync.Mutex
	shapes map[int64]map[string]domain.Shape
	fail   bool
}

func newFakeShapeRepo() *fakeShapeRepo {
	return &fakeShapeRepo{shapes: make(map[int64]map[string]domain.Shape)}
}

func (r *fakeShapeRepo) Create(_ context.Context, roomID int64, userID uuid.UUID, draft domain.Shape) (*domain.Shape, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("store down")
	}
	room := r.shapes[roomID]
	if room == nil {
		room = make(map[string]domain.Shape)
		r.shapes[roomID] = room
	}
	if _, exists := room[draft.ID]; exists {
		return nil, domain.ErrShapeIDTaken
	}
	draft.UserID = userID.String()
	draft.RoomID = roomID
	draft.CreatedAt = time.Now()
	room[draft.ID] = draft
	return &draft, nil
}

func (r *fakeShapeRepo) ListByRoom(_ context.Context, roomID int64) ([]domain.Shape, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Shape, 0, len(r.shapes[roomID]))
	for _, s := range r.shapes[roomID] {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeShapeRepo) Delete(_ context.Context, roomID int64, shapeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("store down")
	}
	delete(r.shapes[roomID], shapeID)
	return nil
}

func (r *fakeShapeRepo) DeleteAllInRoom(_ context.Context, roomID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("store down")
	}
	delete(r.shapes, roomID)
	return nil
}

type fakeChatRepo struct {
	mu    sync.Mutex
	chats []domain.Chat
	fail  bool
}

func (r *fakeChatRepo) Create(_ context.Context, roomID int64, userID uuid.UUID, message string) (*domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("store down")
	}
	chat := domain.Chat{ID: int64(len(r.chats) + 1), RoomID: roomID, UserID: userID, Message: message, CreatedAt: time.Now()}
	r.chats = append(r.chats, chat)
	return &chat, nil
}

func (r *fakeChatRepo) ListByRoom(_ context.Context, roomID int64) ([]domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Chat, 0)
	for _, c := range r.chats {
		if c.RoomID == roomID {
			out = append(out, c)
		}
	}
	return out, nil
}

type sessionHarness struct {
	registry *Registry
	shapes   *fakeShapeRepo
	chats    *fakeChatRepo
	srv      *httptest.Server
}

// newSessionHarness runs a websocket endpoint where every dial becomes a
// fresh authenticated session with its own user id.
func newSessionHarness(t *testing.T) *sessionHarness {
	t.Helper()

	h := &sessionHarness{
		registry: NewRegistry(),
		shapes:   newFakeShapeRepo(),
		chats:    &fakeChatRepo{},
	}
	broadcaster := NewBroadcaster(h.registry, nil)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		userID := uuid.New()
		conn := NewConn(wsConn, userID, "user-"+userID.String()[:8], Options{})
		session := NewSession(conn, domain.UserSummary{ID: userID, Username: "tester"}, SessionDeps{
			Registry:    h.registry,
			Broadcaster: broadcaster,
			Shapes:      h.shapes,
			Chats:       h.chats,
		})
		_ = session.Run(context.Background())
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *sessionHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func sendJSON(t *testing.T, client *websocket.Conn, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, client.WriteMessage(websocket.TextMessage, data))
}

// expectMessage reads until it sees a message of the wanted type,
// tolerating interleaved presence traffic.
func expectMessage(t *testing.T, client *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, raw, err := client.ReadMessage()
		require.NoError(t, err, "waiting for %q", wantType)

		var msg map[string]any
		require.NoError(t, json.Unmarshal(raw, &msg))
		if msg["type"] == wantType {
			return msg
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func expectSilence(t *testing.T, client *websocket.Conn) {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := client.ReadMessage()
	assert.Error(t, err)
}

func testShape(id string) domain.Shape {
	return domain.Shape{ID: id, Type: domain.ShapeRectangle, X: 1, Y: 2, Width: 10, Height: 20, StrokeColor: "#000", FillColor: "none", StrokeWidth: 2}
}

func TestSession_ShapeEchoedToSender(t *testing.T) {
	h := newSessionHarness(t)
	client := h.dial(t)

	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	shape := testShape("s1")
	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgShape, RoomID: 1, Shape: &shape})

	msg := expectMessage(t, client, "shape")
	got := msg["shape"].(map[string]any)
	assert.Equal(t, "s1", got["id"])
	// The echo carries the server-stamped attribution.
	assert.NotEmpty(t, got["user_id"])
	assert.Equal(t, float64(1), got["room_id"])
}

func TestSession_ShapeVisibleToRoomMembers(t *testing.T) {
	h := newSessionHarness(t)
	author := h.dial(t)
	viewer := h.dial(t)

	sendJSON(t, author, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	// Make the author's membership observable before the viewer joins; the
	// server makes no cross-connection ordering promise.
	waitFor(t, func() bool { return len(h.registry.MembersOf(1)) == 1 })
	sendJSON(t, viewer, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	// Wait until the viewer's join reaches the author so ordering is fixed.
	expectMessage(t, author, "user_joined")

	shape := testShape("s2")
	sendJSON(t, author, domain.ClientMessage{Type: domain.MsgShape, RoomID: 1, Shape: &shape})

	msg := expectMessage(t, viewer, "shape")
	assert.Equal(t, "s2", msg["shape"].(map[string]any)["id"])
}

func TestSession_NonMemberMutationsRejected(t *testing.T) {
	h := newSessionHarness(t)
	client := h.dial(t)

	shape := testShape("s3")
	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgShape, RoomID: 1, Shape: &shape})

	msg := expectMessage(t, client, "error")
	assert.Contains(t, msg["message"], "not a member")

	// Nothing was persisted.
	shapes, err := h.shapes.ListByRoom(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, shapes)

	// The connection survives: joining afterwards works.
	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgShape, RoomID: 1, Shape: &shape})
	expectMessage(t, client, "shape")
}

func TestSession_RoomLimitRejectedWithError(t *testing.T) {
	h := newSessionHarness(t)
	h.registry.SetRoomLimit(1)
	client := h.dial(t)

	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 2})

	msg := expectMessage(t, client, "error")
	assert.Contains(t, msg["message"], "room limit")

	// The first membership is intact and the connection survives.
	shape := testShape("s9")
	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgShape, RoomID: 1, Shape: &shape})
	expectMessage(t, client, "shape")
}

func TestSession_MalformedMessageKeepsConnection(t *testing.T) {
	h := newSessionHarness(t)
	client := h.dial(t)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := expectMessage(t, client, "error")
	assert.Contains(t, msg["message"], "malformed")

	sendJSON(t, client, domain.ClientMessage{Type: "bogus", RoomID: 1})
	msg = expectMessage(t, client, "error")
	assert.Contains(t, msg["message"], "unknown message type")

	// Still alive.
	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	shape := testShape("s4")
	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgShape, RoomID: 1, Shape: &shape})
	expectMessage(t, client, "shape")
}

func TestSession_DuplicateShapeIDRejected(t *testing.T) {
	h := newSessionHarness(t)
	client := h.dial(t)

	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	shape := testShape("dup")
	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgShape, RoomID: 1, Shape: &shape})
	expectMessage(t, client, "shape")

	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgShape, RoomID: 1, Shape: &shape})
	expectMessage(t, client, "error")
}

func TestSession_DeleteShapeIsIdempotent(t *testing.T) {
	h := newSessionHarness(t)
	client := h.dial(t)

	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	sendJSON(t, client, domain.ClientMessage{Type: domain.MsgDeleteShape, RoomID: 1, ShapeID: "never-existed"})

	msg := expectMessage(t, client, "delete_shape")
	assert.Equal(t, "never-existed", msg["shape_id"])
}

func TestSession_ChatBroadcast(t *testing.T) {
	h := newSessionHarness(t)
	a := h.dial(t)
	b := h.dial(t)

	sendJSON(t, a, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	waitFor(t, func() bool { return len(h.registry.MembersOf(1)) == 1 })
	sendJSON(t, b, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	expectMessage(t, a, "user_joined")

	sendJSON(t, a, domain.ClientMessage{Type: domain.MsgChat, RoomID: 1, Message: "hello"})

	for _, client := range []*websocket.Conn{a, b} {
		msg := expectMessage(t, client, "chat")
		assert.Equal(t, "hello", msg["message"])
		assert.NotNil(t, msg["user"])
	}
}

func TestSession_PresenceOnJoinAndDisconnect(t *testing.T) {
	h := newSessionHarness(t)
	a := h.dial(t)
	b := h.dial(t)

	sendJSON(t, a, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	waitFor(t, func() bool { return len(h.registry.MembersOf(1)) == 1 })
	sendJSON(t, b, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})

	joined := expectMessage(t, a, "user_joined")
	assert.NotEmpty(t, joined["user_id"])

	_ = b.Close()

	left := expectMessage(t, a, "user_left")
	assert.Equal(t, joined["user_id"], left["user_id"])
}

func TestSession_StoreFailureStaysLocal(t *testing.T) {
	h := newSessionHarness(t)
	a := h.dial(t)
	b := h.dial(t)

	sendJSON(t, a, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	waitFor(t, func() bool { return len(h.registry.MembersOf(1)) == 1 })
	sendJSON(t, b, domain.ClientMessage{Type: domain.MsgJoinRoom, RoomID: 1})
	expectMessage(t, a, "user_joined")

	h.shapes.mu.Lock()
	h.shapes.fail = true
	h.shapes.mu.Unlock()

	shape := testShape("s5")
	sendJSON(t, a, domain.ClientMessage{Type: domain.MsgShape, RoomID: 1, Shape: &shape})

	expectMessage(t, a, "error")
	// Peers never observe unpersisted state.
	expectSilence(t, b)
}
