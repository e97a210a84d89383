// Package redis provides the Redis-backed parts of the chat service: a cache
// of first message pages, the cross-instance invalidation channel and a
// shared fixed-window rate limiter.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis provides caching and shared counters in Redis.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings the server to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.cli.Close()
}
