package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	roomChannelPrefix = "room:"
	publishTimeout    = 2 * time.Second
)

// roomEnvelope is the message published via Redis Pub/Sub. Origin carries
// the publishing instance's id so an instance never relays its own
// broadcasts back onto itself.
type roomEnvelope struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

func roomChannel(roomID int64) string {
	return roomChannelPrefix + strconv.FormatInt(roomID, 10)
}

// LocalDeliverer hands relayed bytes to the local members of a room.
type LocalDeliverer interface {
	DeliverLocal(roomID int64, data []byte)
}

// RoomPubSub fans room broadcasts out across server instances via Redis
// Pub/Sub. Each instance publishes its local broadcasts and relays every
// foreign one to its own connected members.
type RoomPubSub struct {
	rdb        *goredis.Client
	instanceID string
}

// NewRoomPubSub creates a RoomPubSub with a fresh instance identity.
func NewRoomPubSub(client *Client) *RoomPubSub {
	return &RoomPubSub{
		rdb:        client.rdb,
		instanceID: uuid.NewString(),
	}
}

// Publish forwards one serialized room broadcast to the other instances.
// Failures are logged and dropped; local delivery already happened.
func (ps *RoomPubSub) Publish(roomID int64, data []byte) {
	env := roomEnvelope{Origin: ps.instanceID, Data: data}
	payload, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal pubsub envelope", "room_id", roomID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := ps.rdb.Publish(ctx, roomChannel(roomID), payload).Err(); err != nil {
		slog.Warn("Failed to publish room broadcast", "room_id", roomID, "error", err)
	}
}

// Relay subscribes to every room channel and delivers foreign broadcasts
// to local members until ctx is cancelled. Run it on its own goroutine.
func (ps *RoomPubSub) Relay(ctx context.Context, deliverer LocalDeliverer) error {
	sub := ps.rdb.PSubscribe(ctx, roomChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to room channels: %w", err)
	}

	msgCh := sub.Channel()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return nil
			}
			ps.relayMessage(msg, deliverer)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (ps *RoomPubSub) relayMessage(msg *goredis.Message, deliverer LocalDeliverer) {
	roomID, err := strconv.ParseInt(strings.TrimPrefix(msg.Channel, roomChannelPrefix), 10, 64)
	if err != nil {
		slog.Warn("Ignoring pubsub message on malformed channel", "channel", msg.Channel)
		return
	}

	var env roomEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		slog.Warn("Failed to unmarshal pubsub message", "channel", msg.Channel, "error", err)
		return
	}
	if env.Origin == ps.instanceID {
		return
	}

	deliverer.DeliverLocal(roomID, env.Data)
}
