package redis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/GetStream/careerchat/apperror"
	"github.com/redis/go-redis/v9"
)

const limiterPrefix = "ratelimit"

// Limiter is a fixed-window rate limiter whose counters live in Redis, so
// that every instance of the service shares them.
type Limiter struct {
	cli    *redis.Client
	window time.Duration
	max    int64
}

// Limiter returns a Limiter admitting max requests per identity and window.
func (r *Redis) Limiter(window time.Duration, max int) *Limiter {
	return &Limiter{cli: r.cli, window: window, max: int64(max)}
}

// Check counts a request from identity. The first request of a window
// creates the counter with the window as its TTL, so the key expiring is
// the window reset.
func (l *Limiter) Check(ctx context.Context, identity string) error {
	key := fmt.Sprintf("%s:%s", limiterPrefix, identity)

	var (
		count *redis.IntCmd
		ttl   *redis.DurationCmd
	)
	_, err := l.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, l.window)
		count = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis rate limit: %w", err)
	}

	if count.Val() > l.max {
		return apperror.RateLimited(int(math.Ceil(ttl.Val().Seconds())))
	}
	return nil
}
