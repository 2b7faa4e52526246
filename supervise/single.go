package supervise

import (
	"context"
	"sync"
)

type singleState int

const (
	stateActive singleState = iota
	stateClosing
	stateClosed
)

// Single owns exactly one handle and guarantees the task is terminal
// by the time Close returns, whether the enclosing scope exits
// normally, by failure, or by cancellation.
type Single struct {
	h      *Handle
	follow bool

	mu     sync.Mutex
	state  singleState
	result error
}

// Supervise schedules fn and wraps its handle in a Single.
func Supervise(ctx context.Context, fn Func, opts ...Option) *Single {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Single{h: spawn(ctx, fn, o), follow: o.FollowThrough}
}

// Adopt wraps an already-spawned handle. The Single takes over the
// obligation to see the task through to a terminal state.
func Adopt(h *Handle, opts ...Option) *Single {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Single{h: h, follow: o.FollowThrough}
}

// Handle returns the supervised handle.
func (s *Single) Handle() *Handle { return s.h }

// Finished reports whether the supervised task is terminal.
func (s *Single) Finished() bool { return s.h.Finished() }

// Close cancels the supervised task (or, with WithFollowThrough,
// awaits it) and blocks until it is terminal. An unrelated failure
// from the task is returned; honored cancellation is not. Repeated
// calls return the recorded result.
func (s *Single) Close(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateClosed:
		r := s.result
		s.mu.Unlock()
		return r
	case stateClosing:
		// Another Close is in flight; wait for the task and report
		// its failure, if any.
		s.mu.Unlock()
		<-s.h.done
		return s.h.failure()
	}
	s.state = stateClosing
	s.mu.Unlock()

	var err error
	if s.follow {
		err = FollowThrough(ctx, s.h)
	} else {
		err = Cancel(ctx, s.h)
	}

	s.mu.Lock()
	s.state = stateClosed
	s.result = err
	s.mu.Unlock()
	return err
}
