package supervise

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Spawn once Close has drained the pool.
var ErrPoolClosed = errors.New("supervise: pool closed")

// Pool owns a dynamically growing set of handles and guarantees every
// one of them is terminal by the time Close returns, including tasks
// spawned while teardown is already in progress.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	sem    *semaphore.Weighted

	mu     sync.Mutex
	active []*Handle
	idle   chan struct{}
	closed bool
	result error
}

// NewPool creates a pool whose tasks derive their contexts from ctx.
func NewPool(ctx context.Context, opts ...Option) *Pool {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newPool(ctx, o)
}

func newPool(ctx context.Context, o Options) *Pool {
	if ctx == nil {
		ctx = context.Background()
	}
	pctx, cancel := context.WithCancel(ctx)
	idle := make(chan struct{})
	close(idle)
	p := &Pool{ctx: pctx, cancel: cancel, opts: o, idle: idle}
	if o.MaxConcurrency > 0 {
		p.sem = semaphore.NewWeighted(int64(o.MaxConcurrency))
	}
	return p
}

// Spawn schedules fn in the pool and returns its handle without
// waiting. Spawning is permitted while teardown is in progress: a
// task's cancellation handler may spawn cleanup work, which starts
// with an already-cancelled context and is caught by the next teardown
// pass. Once Close has drained the pool, Spawn reports ErrPoolClosed.
func (p *Pool) Spawn(fn Func) (*Handle, error) {
	o := p.opts
	o.sem = p.sem
	o.onFinish = p.collect

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	h := newHandle(p.ctx, o)
	p.active = append(p.active, h)
	if len(p.active) == 1 {
		p.idle = make(chan struct{})
	}
	p.mu.Unlock()

	go h.run(fn, o)
	return h, nil
}

// collect drops a finished handle from the active set and closes the
// idle channel when the set empties.
func (p *Pool) collect(h *Handle) {
	p.mu.Lock()
	for i, a := range p.active {
		if a == h {
			p.active = append(p.active[:i], p.active[i+1:]...)
			break
		}
	}
	if len(p.active) == 0 {
		close(p.idle)
	}
	p.mu.Unlock()
}

// Len returns the number of tasks that have not yet finished.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Done returns a channel that is closed while no tasks are running.
// Spawning into an idle pool installs a fresh channel.
func (p *Pool) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle
}

// WaitIdle blocks until every task spawned so far has finished. It is
// the fan-in counterpart of Spawn.
func (p *Pool) WaitIdle(ctx context.Context) error {
	select {
	case <-p.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels and drains the pool. Teardown repeats
// snapshot/cancel-all passes until a pass observes no running tasks,
// so work spawned by tasks that are themselves being cancelled is
// still caught. Unrelated failures are collected across passes and
// returned together once the pool is quiescent; failures from earlier
// passes are never overwritten by later ones.
//
// If ctx is cancelled mid-teardown the passes still run to quiescence
// before ctx's error is allowed to resurface.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		r := p.result
		p.mu.Unlock()
		return r
	}
	p.mu.Unlock()

	start := time.Now()
	p.cancel() // tasks spawned from here on start cancelled

	var errs error
	passes := 0
	for {
		var snapshot []*Handle
		p.mu.Lock()
		for _, h := range p.active {
			if !h.Finished() {
				snapshot = append(snapshot, h)
			}
		}
		if len(snapshot) == 0 {
			// Flip closed under the same lock as the emptiness check
			// so no spawn can slip in after the last pass.
			p.closed = true
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()
		passes++
		if err := CancelAll(ctx, snapshot); err != nil && !IsCancellation(err) {
			errs = multierr.Append(errs, err)
		}
	}

	result := errs
	if result == nil {
		result = ctx.Err()
	}
	p.mu.Lock()
	p.result = result
	p.mu.Unlock()

	if p.opts.Observer != nil {
		p.opts.Observer.PoolDrained(p.ctx, time.Since(start), passes)
	}
	return result
}
