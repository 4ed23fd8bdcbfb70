package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client owns the go-redis connection shared by the room relay and the
// readiness check. RoomPubSub reaches the underlying client directly.
type Client struct {
	rdb *redis.Client
}

// NewClient connects using a redis:// URL. The connection is lazy; use Ping
// to verify reachability.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &Client{rdb: redis.NewClient(opts)}, nil
}

// Ping verifies the connection. The readiness endpoint calls this.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
