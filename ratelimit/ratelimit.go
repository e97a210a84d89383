// Package ratelimit provides fixed-window admission control keyed by client
// identity.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/GetStream/careerchat/apperror"
)

const (
	DefaultWindow      = 15 * time.Minute
	DefaultMaxRequests = 200
)

// A Limiter admits or rejects a request from identity. A rejection is a
// *apperror.RateLimitedError carrying the seconds until the window resets.
type Limiter interface {
	Check(ctx context.Context, identity string) error
}

type entry struct {
	count   int
	resetAt time.Time
}

// Window is an in-memory fixed-window Limiter. State is local to the
// process. Create one per process and share it between all handlers.
type Window struct {
	// Size of a window. Defaults to DefaultWindow.
	Size time.Duration
	// MaxRequests admitted per identity and window. Defaults to
	// DefaultMaxRequests.
	MaxRequests int
	// Now defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewWindow returns a Window admitting max requests per size.
func NewWindow(size time.Duration, max int) *Window {
	return &Window{Size: size, MaxRequests: max}
}

func (w *Window) Check(_ context.Context, identity string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if w.entries == nil {
		w.entries = make(map[string]*entry)
	}
	w.purge(now)

	e, ok := w.entries[identity]
	if !ok {
		w.entries[identity] = &entry{count: 1, resetAt: now.Add(w.size())}
		return nil
	}
	if e.count >= w.max() {
		return apperror.RateLimited(retryAfter(e.resetAt.Sub(now)))
	}
	e.count++
	return nil
}

// Len returns the number of identities currently tracked.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// purge drops every entry whose window has elapsed.
func (w *Window) purge(now time.Time) {
	for id, e := range w.entries {
		if now.After(e.resetAt) {
			delete(w.entries, id)
		}
	}
}

func (w *Window) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Window) size() time.Duration {
	if w.Size > 0 {
		return w.Size
	}
	return DefaultWindow
}

func (w *Window) max() int {
	if w.MaxRequests > 0 {
		return w.MaxRequests
	}
	return DefaultMaxRequests
}

// retryAfter rounds d up to whole seconds.
func retryAfter(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
