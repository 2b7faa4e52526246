package supervise

import (
	"context"
	"errors"
)

// Cancel requests cancellation of h and waits for it to reach a
// terminal state. A Cancelled outcome is not an error to the
// requester; a Failed outcome is returned so that an unrelated failure
// already in flight is never masked by the cancellation request. If h
// was already terminal, Cancel returns immediately under the same
// masking rule.
//
// If ctx is cancelled while waiting, Cancel still waits for h to
// finish before returning ctx's error: a teardown that is itself being
// torn down must complete before the outer cancellation resurfaces.
func Cancel(ctx context.Context, h *Handle) error {
	h.signalCancel()
	return settle(ctx, h)
}

// CancelAll requests cancellation of every handle before waiting on
// any of them, then waits for all to reach a terminal state.
// Requesting first eliminates the completion-order race where a task
// scheduled to start after an earlier one finishes would miss its
// cancellation request.
//
// The first Failed outcome in input order is returned; the rest remain
// inspectable on their handles. If no handle failed and ctx was
// cancelled while waiting, ctx's error is returned only after every
// handle has finished.
func CancelAll(ctx context.Context, handles []*Handle) error {
	for _, h := range handles {
		h.signalCancel()
	}
	var first error
	interrupted := false
	for _, h := range handles {
		select {
		case <-h.done:
		case <-ctx.Done():
			interrupted = true
			<-h.done
		}
		if first == nil {
			first = h.failure()
		}
	}
	if first != nil {
		return first
	}
	if interrupted {
		return ctx.Err()
	}
	return nil
}

// FollowThrough waits for h to reach a terminal state without
// requesting cancellation. If ctx is cancelled while waiting, the
// cancellation is forwarded into h, so the task cannot keep running
// after its last watcher is gone, and FollowThrough still waits for h
// before letting ctx's error propagate.
func FollowThrough(ctx context.Context, h *Handle) error {
	return settle(ctx, h)
}

// settle waits for h, absorbing cancellation of ctx until the task has
// actually finished. A cancellation of ctx is forwarded into h.
func settle(ctx context.Context, h *Handle) error {
	select {
	case <-h.done:
		return h.failure()
	default:
	}
	select {
	case <-h.done:
		return h.failure()
	case <-ctx.Done():
		h.signalCancel()
		<-h.done
		if err := h.failure(); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// WaitUntilCancelled blocks until ctx is cancelled and returns its
// error. It is the canonical body for background work that only ever
// finishes through cancellation, and a convenient placeholder task in
// tests.
func WaitUntilCancelled(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// IsCancellation reports whether err represents honored cancellation
// or an expired deadline rather than an unrelated failure.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
