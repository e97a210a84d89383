package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GetStream/careerchat/apperror"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newWindow(max int) (*Window, *fakeClock) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := NewWindow(time.Minute, max)
	w.Now = clk.Now
	return w, clk
}

func TestWindow_Check(t *testing.T) {
	ctx := context.Background()
	w, clk := newWindow(3)

	for i := 0; i < 3; i++ {
		if err := w.Check(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("Call %d: got %v, want admitted", i+1, err)
		}
	}

	clk.Advance(20 * time.Second)
	err := w.Check(ctx, "10.0.0.1")
	var rl *apperror.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("Got %v, want RateLimitedError", err)
	}
	if rl.RetryAfter != 40 {
		t.Errorf("Got RetryAfter %d, want 40", rl.RetryAfter)
	}

	if err := w.Check(ctx, "10.0.0.2"); err != nil {
		t.Errorf("Other identity: got %v, want admitted", err)
	}

	// The reset instant itself still belongs to the old window.
	clk.Advance(40 * time.Second)
	if err := w.Check(ctx, "10.0.0.1"); err == nil {
		t.Error("Got admitted at the reset instant, want rejected")
	}

	clk.Advance(time.Millisecond)
	if err := w.Check(ctx, "10.0.0.1"); err != nil {
		t.Errorf("After reset: got %v, want admitted", err)
	}
	for i := 0; i < 2; i++ {
		if err := w.Check(ctx, "10.0.0.1"); err != nil {
			t.Errorf("Fresh window call %d: got %v", i+2, err)
		}
	}
	if err := w.Check(ctx, "10.0.0.1"); err == nil {
		t.Error("Fresh window: got admitted past max")
	}
}

func TestWindow_retryAfterRoundsUp(t *testing.T) {
	ctx := context.Background()
	w, clk := newWindow(1)

	_ = w.Check(ctx, "a")
	clk.Advance(59*time.Second + 500*time.Millisecond)
	err := w.Check(ctx, "a")
	var rl *apperror.RateLimitedError
	if !errors.As(err, &rl) || rl.RetryAfter != 1 {
		t.Errorf("Got %v, want retry after 1s", err)
	}
}

func TestWindow_purgesExpired(t *testing.T) {
	ctx := context.Background()
	w, clk := newWindow(10)

	for _, id := range []string{"a", "b", "c"} {
		_ = w.Check(ctx, id)
	}
	if n := w.Len(); n != 3 {
		t.Fatalf("Got %d entries, want 3", n)
	}

	clk.Advance(2 * time.Minute)
	_ = w.Check(ctx, "d")
	if n := w.Len(); n != 1 {
		t.Errorf("Got %d entries after expiry, want 1", n)
	}
}

func TestWindow_defaults(t *testing.T) {
	w := &Window{}
	if w.size() != 15*time.Minute || w.max() != 200 {
		t.Errorf("Got defaults %v/%d", w.size(), w.max())
	}
}

func TestWindow_concurrent(t *testing.T) {
	ctx := context.Background()
	w, _ := newWindow(100)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 250; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.Check(ctx, "shared") == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 100 {
		t.Errorf("Got %d admitted, want exactly 100", admitted)
	}
}
