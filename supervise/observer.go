package supervise

import (
	"context"
	"time"
)

// Observer receives lifecycle hooks from tasks and supervisors.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	// TaskStarted fires when a spawned task begins running.
	TaskStarted(ctx context.Context)
	// TaskFinished fires once per task with its terminal outcome. The
	// error is non-nil for Failed and Cancelled outcomes.
	TaskFinished(ctx context.Context, dur time.Duration, outcome Outcome, err error)
	// CancelRequested fires at most once per handle, on the first
	// cancellation request.
	CancelRequested(ctx context.Context)
	// PoolDrained fires when a pool finishes teardown, with the total
	// wait and the number of cancellation passes it took to reach
	// quiescence.
	PoolDrained(ctx context.Context, wait time.Duration, passes int)
	// TickScheduled fires for every periodic tick; skipped is true
	// when the overlap policy dropped the tick.
	TickScheduled(ctx context.Context, skipped bool)
}
