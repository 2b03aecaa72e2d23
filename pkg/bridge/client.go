// Package bridge relays RPC traffic to and from Redis: pending commands
// arrive on a list (drained with BRPOP), and results are written to a
// hash and published on its channel in one pipelined round trip.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is a small Redis client keeping only the operations the RPC/
// Redis bridge needs: BRPop to drain the command list,
// WriteAndPublishString to publish a result, and Close.
type Client struct {
	rdb *redis.Client
	ctx context.Context
}

// NewClient connects to a Redis server at addr (db selects the logical
// database, password may be empty) and verifies the connection with PING.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bridge: connect to redis: %w", err)
	}
	return &Client{rdb: rdb, ctx: ctx}, nil
}

// BRPop blocks up to timeout (0 blocks forever) popping the rightmost
// element of key. It returns (nil, nil) on timeout rather than an error,
// since a blocking-pop timeout is the expected steady state, not a
// failure.
func (c *Client) BRPop(timeout time.Duration, key string) ([]string, error) {
	result, err := c.rdb.BRPop(c.ctx, timeout, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("bridge: brpop %s: %w", key, err)
	}
	return result, nil
}

// WriteAndPublishString HSETs field=value on key and publishes
// "field:value" to the key channel in a single pipelined round trip, so a
// subscriber never observes the write without the notification or vice
// versa.
func (c *Client) WriteAndPublishString(key, field, value string) error {
	pipe := c.rdb.TxPipeline()
	pipe.HSet(c.ctx, key, field, value)
	pipe.Publish(c.ctx, key, fmt.Sprintf("%s:%s", field, value))
	_, err := pipe.Exec(c.ctx)
	if err != nil {
		return fmt.Errorf("bridge: write+publish %s.%s: %w", key, field, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
