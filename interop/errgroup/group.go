// Package errgroup provides an adapter that mimics
// golang.org/x/sync/errgroup semantics using a supervise.Pool. It
// enables incremental migration without touching call sites.
package errgroup

import (
	"context"
	"sync"

	"github.com/NetPo4ki/go-supervise/supervise"
)

// Group is an errgroup-like wrapper over a supervise.Pool.
type Group struct {
	pool   *supervise.Pool
	cancel context.CancelFunc

	once sync.Once
	err  error
}

// WithContext creates a Group bound to ctx. The returned context is
// cancelled the first time a function passed to Go returns a non-nil
// error.
func WithContext(ctx context.Context) (*Group, context.Context) {
	gctx, cancel := context.WithCancel(ctx)
	g := &Group{pool: supervise.NewPool(gctx), cancel: cancel}
	return g, gctx
}

// Go starts f in the group. A non-nil return value cancels the group
// context and becomes the result of Wait.
func (g *Group) Go(f func() error) {
	if f == nil {
		return
	}
	_, _ = g.pool.Spawn(func(context.Context) error {
		if err := f(); err != nil {
			g.once.Do(func() {
				g.err = err
				g.cancel()
			})
			return err
		}
		return nil
	})
}

// Wait blocks until all functions started with Go have returned, then
// returns the first non-nil error among them, if any.
func (g *Group) Wait() error {
	_ = g.pool.WaitIdle(context.Background())
	g.cancel()
	return g.err
}
