package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nishchay-veer/canvas-app/internal/metrics"
)

// Publisher forwards a room broadcast to other server instances. The local
// fan-out never waits for it.
type Publisher interface {
	Publish(roomID int64, data []byte)
}

// Broadcaster fans a message out to every current member of a room.
// Delivery is best-effort: a peer whose buffer is full or whose transport
// has failed is logged, scheduled for cleanup and skipped; the remaining
// members still receive the message.
type Broadcaster struct {
	registry *Registry
	metrics  *metrics.WebSocketMetrics
	pub      Publisher

	// Serializes fan-outs so every member of a room observes broadcasts in
	// the order the server processed them. Held only while enqueueing to
	// member buffers, never across store calls.
	mu sync.Mutex
}

func NewBroadcaster(registry *Registry, m *metrics.WebSocketMetrics) *Broadcaster {
	return &Broadcaster{registry: registry, metrics: m}
}

// SetPublisher wires cross-instance fan-out. Must be called before the
// first broadcast.
func (b *Broadcaster) SetPublisher(pub Publisher) {
	b.pub = pub
}

// Broadcast serializes msg once and delivers the identical bytes to every
// member of the room except exclude (pass nil to reach everyone). Unknown
// or empty rooms are a no-op.
func (b *Broadcaster) Broadcast(roomID int64, msg any, exclude *Conn) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal broadcast message", "room_id", roomID, "error", err)
		return
	}

	b.deliver(roomID, data, exclude)

	if b.pub != nil {
		b.pub.Publish(roomID, data)
	}
}

// DeliverLocal hands pre-serialized bytes to the local members of a room.
// Used by the cross-instance relay; no exclusion, no re-publish.
func (b *Broadcaster) DeliverLocal(roomID int64, data []byte) {
	b.deliver(roomID, data, nil)
}

func (b *Broadcaster) deliver(roomID int64, data []byte, exclude *Conn) {
	b.mu.Lock()
	members := b.registry.MembersOf(roomID)

	var failed []*Conn
	delivered := 0
	for _, c := range members {
		if c == exclude {
			continue
		}
		if err := c.Send(data); err != nil {
			failed = append(failed, c)
			continue
		}
		delivered++
	}
	b.mu.Unlock()

	if b.metrics != nil && delivered > 0 {
		b.metrics.BroadcastMessages.Add(float64(delivered))
	}

	// Cleanup outside the fan-out lock: closing the transport makes the
	// peer's read loop exit, which unregisters it.
	for _, c := range failed {
		slog.Warn("Dropping unresponsive peer", "room_id", roomID, "user_id", c.UserID())
		if b.metrics != nil {
			b.metrics.DroppedPeers.Inc()
		}
		c.Close()
	}
}
