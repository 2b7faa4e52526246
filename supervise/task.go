package supervise

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// Func is a unit of work. When ctx is closed the function should wind
// down at its next suspension point and return ctx.Err(). A non-nil
// error for any other reason marks the task as failed.
type Func func(ctx context.Context) error

// Outcome is the terminal state of a Handle. It is written exactly
// once, by the goroutine that ran the task, and never changes.
type Outcome int

const (
	// Pending means the task has not reached a terminal state yet.
	Pending Outcome = iota
	// Completed means the task returned nil.
	Completed
	// Failed means the task returned an unrelated error or panicked.
	Failed
	// Cancelled means the task honored a cancellation request or an
	// expired deadline.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ErrPanic is the error recorded when a unit of work panics.
type ErrPanic struct {
	Value any
	Stack []byte
}

func (e ErrPanic) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap returns the value passed to panic if it was an error.
func (e ErrPanic) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// errCancelRequested marks a task context cancelled through a
// cancellation request rather than through its parent.
var errCancelRequested = errors.New("supervise: cancel requested")

// Handle is the scheduled execution of a Func.
type Handle struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
	obs    Observer

	cancelObs sync.Once

	mu      sync.Mutex
	outcome Outcome
	err     error
}

// Spawn schedules fn on its own goroutine and returns its handle
// without waiting. The task context derives from ctx; cancelling ctx
// cancels the task.
func Spawn(ctx context.Context, fn Func, opts ...Option) *Handle {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return spawn(ctx, fn, o)
}

func spawn(ctx context.Context, fn Func, o Options) *Handle {
	h := newHandle(ctx, o)
	go h.run(fn, o)
	return h
}

func newHandle(ctx context.Context, o Options) *Handle {
	if ctx == nil {
		ctx = context.Background()
	}
	h := &Handle{done: make(chan struct{}), obs: o.Observer}
	h.ctx, h.cancel = context.WithCancelCause(ctx)
	return h
}

func (h *Handle) run(fn Func, o Options) {
	if h.obs != nil {
		h.obs.TaskStarted(h.ctx)
	}
	start := time.Now()

	err := func() error {
		if o.sem != nil {
			if aerr := o.sem.Acquire(h.ctx, 1); aerr != nil {
				return aerr
			}
			defer o.sem.Release(1)
		}
		return runFunc(h.ctx, fn)
	}()
	h.cancel(context.Canceled)

	h.mu.Lock()
	switch {
	case err == nil:
		h.outcome = Completed
	case IsCancellation(err):
		h.outcome = Cancelled
		h.err = err
	default:
		h.outcome = Failed
		h.err = err
	}
	outcome, terr := h.outcome, h.err
	h.mu.Unlock()
	close(h.done)

	if h.obs != nil {
		h.obs.TaskFinished(h.ctx, time.Since(start), outcome, terr)
	}
	if o.onFinish != nil {
		o.onFinish(h)
	}
}

// runFunc executes fn in the current goroutine, converting a panic
// into an ErrPanic with the captured stack.
func runFunc(ctx context.Context, fn Func) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = ErrPanic{Value: p, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

// Done returns a channel that is closed once the task is terminal.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Finished reports whether the task has reached a terminal state.
func (h *Handle) Finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Outcome returns the terminal outcome and, for Failed and Cancelled,
// the recorded error. It returns Pending with a nil error while the
// task is still running.
func (h *Handle) Outcome() (Outcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome, h.err
}

// signalCancel requests cooperative cancellation without waiting. The
// request only takes effect at the task's next suspension point.
func (h *Handle) signalCancel() {
	h.cancel(errCancelRequested)
	if h.obs != nil {
		h.cancelObs.Do(func() { h.obs.CancelRequested(h.ctx) })
	}
}

// failure returns the task error only when the outcome is Failed, so
// that honored cancellation is never reported as an error.
func (h *Handle) failure() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcome == Failed {
		return h.err
	}
	return nil
}

// Future pairs a Handle with the typed result of a value-returning
// unit of work.
type Future[T any] struct {
	*Handle
	val T
}

// Call schedules fn and exposes its result through the returned
// Future. The value is only readable once the task completed.
func Call[T any](ctx context.Context, fn func(context.Context) (T, error), opts ...Option) *Future[T] {
	f := &Future[T]{}
	f.Handle = Spawn(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		f.val = v
		return nil
	}, opts...)
	return f
}

// Result follows the task through to completion and returns its value.
// Unless the outcome is Completed the zero value is returned along
// with the recorded (or resurfaced) error.
func (f *Future[T]) Result(ctx context.Context) (T, error) {
	if err := FollowThrough(ctx, f.Handle); err != nil {
		var zero T
		return zero, err
	}
	if o, err := f.Outcome(); o != Completed {
		var zero T
		if err == nil {
			err = context.Canceled
		}
		return zero, err
	}
	return f.val, nil
}
