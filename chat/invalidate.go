package chat

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// A Key names a family of client-side queries that became stale.
type Key string

func SessionsKey(userID string) Key    { return Key("sessions:" + userID) }
func SessionKey(sessionID string) Key  { return Key("session:" + sessionID) }
func MessagesKey(sessionID string) Key { return Key("messages:" + sessionID) }

// Family returns the family prefix and the identifier of k.
func (k Key) Family() (family, id string) {
	family, id, _ = strings.Cut(string(k), ":")
	return family, id
}

// An Invalidator is told about stale query families after every mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...Key) error
}

// A Collector accumulates the keys invalidated while serving one request.
type Collector struct {
	mu   sync.Mutex
	keys []Key
}

type collectorKey struct{}

// WithCollector returns a context carrying a fresh Collector.
func WithCollector(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

func collectorFrom(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey{}).(*Collector)
	return c
}

func (c *Collector) add(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if !slices.Contains(c.keys, k) {
			c.keys = append(c.keys, k)
		}
	}
}

// Keys returns the collected keys in the order they were first seen.
func (c *Collector) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.keys)
}
