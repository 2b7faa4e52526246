package supervise

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolCloseEmpty(t *testing.T) {
	t.Parallel()
	p := NewPool(context.Background())
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPoolDrainCancelsEveryTask(t *testing.T) {
	t.Parallel()
	const n = 8
	p := NewPool(context.Background())
	handles := make([]*Handle, 0, n)
	for i := 0; i < n; i++ {
		h, err := p.Spawn(WaitUntilCancelled)
		if err != nil {
			t.Fatalf("spawn: %v", err)
		}
		handles = append(handles, h)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	for i, h := range handles {
		if !h.Finished() {
			t.Fatalf("task %d left running after Close", i)
		}
		if o, _ := h.Outcome(); o != Cancelled {
			t.Fatalf("task %d: expected Cancelled, got %v", i, o)
		}
	}
	if _, err := p.Spawn(WaitUntilCancelled); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed after drain, got %v", err)
	}
}

func TestPoolSpawnDuringTeardown(t *testing.T) {
	t.Parallel()
	p := NewPool(context.Background())
	spawned := make(chan *Handle, 1)

	_, err := p.Spawn(func(ctx context.Context) error {
		<-ctx.Done()
		// Cancellation handler spawns cleanup work into the same pool.
		h, err := p.Spawn(WaitUntilCancelled)
		if err == nil {
			spawned <- h
		}
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	select {
	case h := <-spawned:
		if !h.Finished() {
			t.Fatal("task spawned during teardown left running after Close")
		}
		if o, _ := h.Outcome(); o != Cancelled {
			t.Fatalf("expected Cancelled, got %v", o)
		}
	default:
		t.Fatal("cleanup task was not spawned during teardown")
	}
}

func TestPoolRetainsFailuresAcrossPasses(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	p := NewPool(context.Background())

	// A task that fails instead of honoring cancellation, and spawns a
	// second generation to force another teardown pass. It stays live
	// until release closes, so the first pass is guaranteed to observe
	// its failure.
	release := make(chan struct{})
	_, err := p.Spawn(func(ctx context.Context) error {
		<-ctx.Done()
		_, _ = p.Spawn(WaitUntilCancelled)
		<-release
		return boom
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	time.AfterFunc(20*time.Millisecond, func() { close(release) })
	if err := p.Close(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected the first pass failure to survive teardown, got %v", err)
	}
}

func TestPoolWaitIdle(t *testing.T) {
	t.Parallel()
	p := NewPool(context.Background())
	var ran atomic.Int32
	for i := 0; i < 4; i++ {
		if _, err := p.Spawn(func(context.Context) error {
			ran.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("spawn: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.WaitIdle(ctx); err != nil {
		t.Fatalf("wait idle: %v", err)
	}
	if got := ran.Load(); got != 4 {
		t.Fatalf("expected 4 tasks to run, got %d", got)
	}
	if p.Len() != 0 {
		t.Fatalf("expected empty pool, got %d", p.Len())
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPoolMaxConcurrencyBound(t *testing.T) {
	t.Parallel()
	const limit = 3
	const total = 20
	p := NewPool(context.Background(), WithMaxConcurrency(limit))
	var cur, maxSeen atomic.Int64
	block := make(chan struct{})
	for i := 0; i < total; i++ {
		if _, err := p.Spawn(func(ctx context.Context) error {
			c := cur.Add(1)
			defer cur.Add(-1)
			for {
				if m := maxSeen.Load(); c <= m || maxSeen.CompareAndSwap(m, c) {
					break
				}
			}
			select {
			case <-block:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}); err != nil {
			t.Fatalf("spawn: %v", err)
		}
	}
	time.Sleep(30 * time.Millisecond)
	close(block)
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if observed := maxSeen.Load(); observed > limit {
		t.Fatalf("observed concurrency %d exceeds limit %d", observed, limit)
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	p := NewPool(context.Background())
	release := make(chan struct{})
	if _, err := p.Spawn(func(ctx context.Context) error {
		<-ctx.Done()
		<-release
		return boom
	}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	time.AfterFunc(20*time.Millisecond, func() { close(release) })
	first := p.Close(context.Background())
	second := p.Close(context.Background())
	if !errors.Is(first, boom) || !errors.Is(second, boom) {
		t.Fatalf("both closes should report the recorded failure, got (%v, %v)", first, second)
	}
}

type countObserver struct {
	started  atomic.Int64
	finished atomic.Int64
	cancels  atomic.Int64
	drains   atomic.Int64
	passes   atomic.Int64
	ticks    atomic.Int64
	skipped  atomic.Int64
}

func (o *countObserver) TaskStarted(context.Context) { o.started.Add(1) }
func (o *countObserver) TaskFinished(_ context.Context, _ time.Duration, _ Outcome, _ error) {
	o.finished.Add(1)
}
func (o *countObserver) CancelRequested(context.Context) { o.cancels.Add(1) }
func (o *countObserver) PoolDrained(_ context.Context, _ time.Duration, passes int) {
	o.drains.Add(1)
	o.passes.Add(int64(passes))
}
func (o *countObserver) TickScheduled(_ context.Context, skipped bool) {
	o.ticks.Add(1)
	if skipped {
		o.skipped.Add(1)
	}
}

func TestPoolObserverHooks(t *testing.T) {
	t.Parallel()
	obs := &countObserver{}
	p := NewPool(context.Background(), WithObserver(obs))
	for i := 0; i < 2; i++ {
		if _, err := p.Spawn(WaitUntilCancelled); err != nil {
			t.Fatalf("spawn: %v", err)
		}
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if obs.started.Load() != 2 || obs.finished.Load() != 2 {
		t.Fatalf("unexpected task counts: started=%d finished=%d",
			obs.started.Load(), obs.finished.Load())
	}
	if obs.cancels.Load() != 2 || obs.drains.Load() != 1 {
		t.Fatalf("unexpected teardown counts: cancels=%d drains=%d",
			obs.cancels.Load(), obs.drains.Load())
	}
}
