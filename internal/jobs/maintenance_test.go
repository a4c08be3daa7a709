package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingPurger struct{ n atomic.Int32 }

func (c *countingPurger) Purge() int {
	c.n.Add(1)
	return 1
}

type countingRefresher struct {
	n   atomic.Int32
	err error
}

func (c *countingRefresher) EnsureFresh(ctx context.Context) error {
	c.n.Add(1)
	return c.err
}

func TestRunCachePurgeLoopTicksUntilCancelled(t *testing.T) {
	p := &countingPurger{}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err := RunCachePurgeLoop(ctx, p, 10*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if p.n.Load() < 2 {
		t.Fatalf("expected several purges, got %d", p.n.Load())
	}
}

func TestRunSessionKeepaliveSurvivesErrors(t *testing.T) {
	r := &countingRefresher{err: errors.New("upstream down")}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunSessionKeepalive(ctx, r, 5*time.Millisecond) }()
	deadline := time.Now().Add(time.Second)
	for r.n.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if r.n.Load() < 3 {
		t.Fatalf("keepalive stopped after errors: %d calls", r.n.Load())
	}
}
