// Package ctrlc adapts interrupt signals to task cancellation.
package ctrlc

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/NetPo4ki/go-supervise/supervise"
)

// Notify requests cancellation of h when SIGINT or SIGTERM arrives.
// The returned stop function releases the signal handler; it is safe
// to call more than once.
func Notify(h *supervise.Handle) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
			_ = supervise.Cancel(context.Background(), h)
		case <-done:
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Wait blocks until an interrupt arrives or ctx is cancelled. It is
// usable directly as a supervise.Func for a main task that should run
// until CTRL-C.
func Wait(ctx context.Context) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
