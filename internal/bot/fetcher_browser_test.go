package bot

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
)

func idleWaiter() *networkIdleWaiter {
	return &networkIdleWaiter{
		inflight: make(map[network.RequestID]struct{}),
		activity: make(chan struct{}, 1),
	}
}

func TestNetworkIdleWait(t *testing.T) {
	t.Run("quiet page returns after one window", func(t *testing.T) {
		w := idleWaiter()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := w.wait(10 * time.Millisecond).Do(ctx); err != nil {
			t.Fatalf("wait on a quiet page: %v", err)
		}
	})

	t.Run("blocks while a request is in flight", func(t *testing.T) {
		w := idleWaiter()
		w.inflight["req-1"] = struct{}{}

		done := make(chan error, 1)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		go func() {
			done <- w.wait(10 * time.Millisecond).Do(ctx)
		}()

		select {
		case <-done:
			t.Fatal("wait returned with a request still in flight")
		case <-time.After(50 * time.Millisecond):
		}

		w.mu.Lock()
		delete(w.inflight, "req-1")
		w.mu.Unlock()
		w.note()

		if err := <-done; err != nil {
			t.Fatalf("wait after last request finished: %v", err)
		}
	})

	t.Run("context deadline bounds the wait", func(t *testing.T) {
		w := idleWaiter()
		w.inflight["req-stuck"] = struct{}{}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		if err := w.wait(10 * time.Millisecond).Do(ctx); err == nil {
			t.Fatal("a stuck request should time out, not hang")
		}
	})
}
