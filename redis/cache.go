package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GetStream/careerchat/chat"
	"github.com/redis/go-redis/v9"
)

const (
	pagePrefix = "chat:pages"
	pageTTL    = 10 * time.Minute
	// versionTTL outlives every page written under the version.
	versionTTL = 2 * pageTTL

	// InvalidateChannel carries every stale query key, one per message.
	InvalidateChannel = "chat:invalidate"
)

// pageIndex is the set of cached page keys of one session.
func pageIndex(sessionID string) string {
	return fmt.Sprintf("%s:%s", pagePrefix, sessionID)
}

func pageKey(sessionID string, limit int) string {
	return fmt.Sprintf("%s:%s:%d", pagePrefix, sessionID, limit)
}

// Page returns the cached first page of a session for the given page size.
func (r *Redis) Page(ctx context.Context, sessionID string, limit int) (chat.Page[chat.Message], bool, error) {
	var p page
	res := r.cli.HGetAll(ctx, pageKey(sessionID, limit))
	if err := res.Err(); err != nil {
		return chat.Page[chat.Message]{}, false, fmt.Errorf("hgetall: %w", err)
	}
	if len(res.Val()) == 0 {
		return chat.Page[chat.Message]{}, false, nil
	}
	if err := res.Scan(&p); err != nil {
		return chat.Page[chat.Message]{}, false, fmt.Errorf("scan: %w", err)
	}

	out, err := p.APIPage()
	if err != nil {
		return chat.Page[chat.Message]{}, false, err
	}
	return out, true, nil
}

func versionKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:version", pagePrefix, sessionID)
}

// Version returns the invalidation counter of a session. A missing counter
// reads as zero.
func (r *Redis) Version(ctx context.Context, sessionID string) (int64, error) {
	v, err := r.cli.Get(ctx, versionKey(sessionID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

// SetPage caches the first page of a session. The page key is added to the
// session's index so that Invalidate can find it. The write is skipped when
// the session was invalidated after version was read.
func (r *Redis) SetPage(ctx context.Context, sessionID string, limit int, version int64, p chat.Page[chat.Message]) error {
	cp, err := newPage(p)
	if err != nil {
		return err
	}

	key := pageKey(sessionID, limit)
	index := pageIndex(sessionID)
	vkey := versionKey(sessionID)
	err = r.cli.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("get version: %w", err)
		}
		if current != version {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, cp)
			pipe.Expire(ctx, key, pageTTL)
			pipe.SAdd(ctx, index, key)
			pipe.Expire(ctx, index, pageTTL)
			return nil
		})
		return err
	}, vkey)

	switch {
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		return nil
	case err != nil:
		return fmt.Errorf("redis set page: %w", err)
	}
	return nil
}

var errStale = errors.New("stale page")

// Invalidate drops the cached pages of every stale messages family and
// publishes each key on InvalidateChannel.
func (r *Redis) Invalidate(ctx context.Context, keys ...chat.Key) error {
	var errs []error
	for _, k := range keys {
		if family, sessionID := k.Family(); family == "messages" {
			if err := r.dropPages(ctx, sessionID); err != nil {
				errs = append(errs, err)
			}
		}
		if err := r.cli.Publish(ctx, InvalidateChannel, string(k)).Err(); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// dropPages bumps the session's version before deleting its pages, so a
// SetPage that read the old version can no longer write.
func (r *Redis) dropPages(ctx context.Context, sessionID string) error {
	vkey := versionKey(sessionID)
	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, vkey)
		pipe.Expire(ctx, vkey, versionTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}

	index := pageIndex(sessionID)
	keys, err := r.cli.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("smembers: %w", err)
	}
	keys = append(keys, index)
	if err := r.cli.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	return nil
}
