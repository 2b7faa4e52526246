// Package stack composes scoped resources with guaranteed LIFO
// teardown: exit actions run in strict reverse order of entry, and a
// failing exit never prevents the exits below it from running.
package stack

import (
	"context"
	"sync"

	"go.uber.org/multierr"
)

// Resource is anything with a paired entry and exit action. Close is
// invoked at most once by a Stack, and only if Open returned nil.
type Resource interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
}

// Func adapts a bare pair of functions to the Resource interface.
// Either function may be nil.
type Func struct {
	OpenFunc  func(ctx context.Context) error
	CloseFunc func(ctx context.Context) error
}

func (f Func) Open(ctx context.Context) error {
	if f.OpenFunc == nil {
		return nil
	}
	return f.OpenFunc(ctx)
}

func (f Func) Close(ctx context.Context) error {
	if f.CloseFunc == nil {
		return nil
	}
	return f.CloseFunc(ctx)
}

// Stack is a LIFO rollback stack of opened resources.
type Stack struct {
	mu    sync.Mutex
	exits []func(ctx context.Context) error
}

// New returns an empty stack.
func New() *Stack { return &Stack{} }

// Open runs r's entry action and, if it succeeds, schedules r's exit
// action on the stack. On entry failure nothing is recorded and the
// error is returned as is; r's exit action will never run.
func (s *Stack) Open(ctx context.Context, r Resource) error {
	if err := r.Open(ctx); err != nil {
		return err
	}
	s.Push(r.Close)
	return nil
}

// Push schedules a bare exit action without an entry step.
func (s *Stack) Push(exit func(ctx context.Context) error) {
	s.mu.Lock()
	s.exits = append(s.exits, exit)
	s.mu.Unlock()
}

// Len returns the number of pending exit actions.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.exits)
}

// Close pops and runs every exit action in reverse order of entry and
// returns the accumulated failures. A second Close is a no-op.
func (s *Stack) Close(ctx context.Context) error {
	s.mu.Lock()
	exits := s.exits
	s.exits = nil
	s.mu.Unlock()

	var errs error
	for i := len(exits) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, exits[i](ctx))
	}
	return errs
}

// CloseInto closes the stack and merges the result into *errp, keeping
// the failure already in *errp (the one that triggered the unwind)
// primary and the exit failures secondary:
//
//	func serve(ctx context.Context) (err error) {
//		s := stack.New()
//		defer s.CloseInto(ctx, &err)
//		...
//	}
func (s *Stack) CloseInto(ctx context.Context, errp *error) {
	multierr.AppendInto(errp, s.Close(ctx))
}
