package supervise

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// Overlap selects how a periodic task treats a tick that fires while
// the previous execution is still running. Neither mode delays the
// tick: every tick schedules a fresh execution without first
// confirming that the previous one has finished.
type Overlap int

const (
	// OverlapConcurrent schedules the next execution alongside a still
	// running one. Older executions stay supervised by the periodic
	// task's internal pool; only the newest is Current.
	OverlapConcurrent Overlap = iota
	// OverlapSkip drops the tick when the previous execution has not
	// finished yet.
	OverlapSkip
)

// ErrAlreadyOpen is returned by Periodic.Open on a second call.
var ErrAlreadyOpen = errors.New("supervise: periodic task already open")

// Periodic runs a unit of work once immediately and then once per
// interval until closed. An execution that fails does not stop the
// schedule; the failure is reported through WithOnError and the
// observer, and stays inspectable on the execution's handle.
type Periodic struct {
	fn       Func
	interval time.Duration
	opts     Options

	mu      sync.Mutex
	driver  *Single
	pool    *Pool
	current *Handle
}

// NewPeriodic configures a periodic task. Open starts it.
func NewPeriodic(fn Func, interval time.Duration, opts ...Option) *Periodic {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Periodic{fn: fn, interval: interval, opts: o}
}

// Open schedules the driver task. It satisfies stack.Resource.
func (p *Periodic) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.driver != nil {
		return ErrAlreadyOpen
	}
	p.pool = newPool(ctx, p.opts)
	p.driver = Adopt(spawn(ctx, p.run, Options{Observer: p.opts.Observer}))
	return nil
}

func (p *Periodic) run(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	for {
		p.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		timer.Reset(p.interval)
	}
}

func (p *Periodic) tick(ctx context.Context) {
	p.mu.Lock()
	cur, pool := p.current, p.pool
	p.mu.Unlock()

	if p.opts.Overlap == OverlapSkip && cur != nil && !cur.Finished() {
		if p.opts.Observer != nil {
			p.opts.Observer.TickScheduled(ctx, true)
		}
		return
	}
	h, err := pool.Spawn(p.exec)
	if err != nil {
		return // teardown finished ahead of the driver
	}
	p.mu.Lock()
	p.current = h
	p.mu.Unlock()
	if p.opts.Observer != nil {
		p.opts.Observer.TickScheduled(ctx, false)
	}
}

func (p *Periodic) exec(ctx context.Context) error {
	err := p.fn(ctx)
	if err != nil && !IsCancellation(err) && p.opts.OnError != nil {
		p.opts.OnError(ctx, err)
	}
	return err
}

// Current returns the handle of the most recently scheduled execution,
// or nil before the first tick.
func (p *Periodic) Current() *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Close cancels the driver so no further ticks fire, cancels the most
// recently scheduled execution, and drains any execution still
// running. Unrelated failures from the teardown are aggregated; if ctx
// is cancelled mid-close the teardown still completes first.
func (p *Periodic) Close(ctx context.Context) error {
	p.mu.Lock()
	drv, pool := p.driver, p.pool
	p.mu.Unlock()
	if drv == nil {
		return nil
	}

	var errs error
	if err := drv.Close(ctx); err != nil && !IsCancellation(err) {
		errs = multierr.Append(errs, err)
	}
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur != nil {
		if err := Cancel(ctx, cur); err != nil && !IsCancellation(err) {
			errs = multierr.Append(errs, err)
		}
	}
	if err := pool.Close(ctx); err != nil && !IsCancellation(err) {
		errs = multierr.Append(errs, err)
	}

	if errs != nil {
		return errs
	}
	return ctx.Err()
}
