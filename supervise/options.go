package supervise

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Options configure Spawn and the supervisors built on it. Not every
// field applies to every component; the option constructors say which.
type Options struct {
	Observer       Observer
	MaxConcurrency int
	FollowThrough  bool
	Overlap        Overlap
	OnError        func(ctx context.Context, err error)

	sem      *semaphore.Weighted
	onFinish func(*Handle)
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() Options { return Options{} }

// WithObserver attaches lifecycle hooks to spawned tasks and to the
// supervisor itself.
func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

// WithMaxConcurrency bounds the number of pool tasks running at once.
// Tasks beyond the bound wait for a slot; a cancellation request
// releases them without running. Pool only.
func WithMaxConcurrency(n int) Option { return func(o *Options) { o.MaxConcurrency = n } }

// WithFollowThrough makes Single.Close await the task instead of
// cancelling it. Single only.
func WithFollowThrough() Option { return func(o *Options) { o.FollowThrough = true } }

// WithOverlap selects the overlap policy of a periodic task.
// Periodic only.
func WithOverlap(p Overlap) Option { return func(o *Options) { o.Overlap = p } }

// WithOnError routes errors from periodic executions to fn; without
// it a failed execution is only visible through its handle and the
// observer. Periodic only.
func WithOnError(fn func(ctx context.Context, err error)) Option {
	return func(o *Options) { o.OnError = fn }
}
