package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nishchay-veer/canvas-app/internal/domain"
)

// newConnPair upgrades a websocket over a test server and returns the
// server-side Conn plus the raw client side for reading.
func newConnPair(t *testing.T, opts Options) (*Conn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	serverConns := make(chan *Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- NewConn(wsConn, uuid.New(), "tester", opts)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	conn := <-serverConns
	t.Cleanup(conn.Close)
	return conn, client
}

func readMessage(t *testing.T, client *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestBroadcaster_FansOutToAllMembers(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, nil)

	connA, clientA := newConnPair(t, Options{})
	connB, clientB := newConnPair(t, Options{})
	require.NoError(t, registry.Register(connA))
	require.NoError(t, registry.Register(connB))
	require.NoError(t, registry.Join(connA, 1))
	require.NoError(t, registry.Join(connB, 1))

	b.Broadcast(1, domain.NewClearCanvasMessage(1), nil)

	for _, client := range []*websocket.Conn{clientA, clientB} {
		msg := readMessage(t, client)
		assert.Equal(t, "clear_canvas", msg["type"])
		assert.Equal(t, float64(1), msg["room_id"])
	}
}

func TestBroadcaster_ExcludesSender(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, nil)

	connA, clientA := newConnPair(t, Options{})
	connB, clientB := newConnPair(t, Options{})
	require.NoError(t, registry.Register(connA))
	require.NoError(t, registry.Register(connB))
	require.NoError(t, registry.Join(connA, 1))
	require.NoError(t, registry.Join(connB, 1))

	b.Broadcast(1, domain.NewUserJoinedMessage(1, connA.UserID().String()), connA)

	msg := readMessage(t, clientB)
	assert.Equal(t, "user_joined", msg["type"])

	// The excluded sender gets nothing.
	require.NoError(t, clientA.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := clientA.ReadMessage()
	assert.Error(t, err)
}

func TestBroadcaster_SkipsOtherRooms(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, nil)

	connA, clientA := newConnPair(t, Options{})
	require.NoError(t, registry.Register(connA))
	require.NoError(t, registry.Join(connA, 2))

	b.Broadcast(1, domain.NewClearCanvasMessage(1), nil)

	require.NoError(t, clientA.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := clientA.ReadMessage()
	assert.Error(t, err)
}

func TestBroadcaster_UnknownRoomIsNoop(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, nil)

	assert.NotPanics(t, func() {
		b.Broadcast(42, domain.NewClearCanvasMessage(42), nil)
	})
}

func TestBroadcaster_SlowPeerDoesNotBlockOthers(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, nil)

	// A one-slot buffer with a writer stuck behind a dead transport: the
	// second broadcast to this peer fails, the healthy peer still delivers.
	slowConn, slowClient := newConnPair(t, Options{SendBuffer: 1})
	_ = slowClient.Close()
	slowConn.Close()

	healthyConn, healthyClient := newConnPair(t, Options{})
	require.NoError(t, registry.Register(slowConn))
	require.NoError(t, registry.Register(healthyConn))
	require.NoError(t, registry.Join(slowConn, 1))
	require.NoError(t, registry.Join(healthyConn, 1))

	b.Broadcast(1, domain.NewClearCanvasMessage(1), nil)

	msg := readMessage(t, healthyClient)
	assert.Equal(t, "clear_canvas", msg["type"])
}

type capturingPublisher struct {
	roomID int64
	data   []byte
	calls  int
}

func (p *capturingPublisher) Publish(roomID int64, data []byte) {
	p.roomID = roomID
	p.data = data
	p.calls++
}

func TestBroadcaster_PublishesForRelay(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, nil)

	pub := &capturingPublisher{}
	b.SetPublisher(pub)

	b.Broadcast(3, domain.NewDeleteShapeMessage(3, "s1"), nil)

	require.Equal(t, 1, pub.calls)
	assert.Equal(t, int64(3), pub.roomID)
	assert.Contains(t, string(pub.data), "delete_shape")
}

func TestBroadcaster_DeliverLocalDoesNotRepublish(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, nil)

	pub := &capturingPublisher{}
	b.SetPublisher(pub)

	conn, client := newConnPair(t, Options{})
	require.NoError(t, registry.Register(conn))
	require.NoError(t, registry.Join(conn, 1))

	data, err := json.Marshal(domain.NewClearCanvasMessage(1))
	require.NoError(t, err)
	b.DeliverLocal(1, data)

	msg := readMessage(t, client)
	assert.Equal(t, "clear_canvas", msg["type"])
	assert.Equal(t, 0, pub.calls)
}
