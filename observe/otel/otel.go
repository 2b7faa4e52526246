// Package otel emits supervise lifecycle events as span events on the
// trace span carried by the task context.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NetPo4ki/go-supervise/supervise"
)

// Observer implements supervise.Observer by annotating the span found
// in the context. Without a recording span it is a no-op.
type Observer struct{}

// New returns the span-event observer.
func New() *Observer { return &Observer{} }

func (*Observer) TaskStarted(ctx context.Context) {
	trace.SpanFromContext(ctx).AddEvent("task.started")
}

func (*Observer) TaskFinished(ctx context.Context, dur time.Duration, outcome supervise.Outcome, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome.String()),
		attribute.Int64("duration_ms", dur.Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	trace.SpanFromContext(ctx).AddEvent("task.finished", trace.WithAttributes(attrs...))
}

func (*Observer) CancelRequested(ctx context.Context) {
	trace.SpanFromContext(ctx).AddEvent("task.cancel_requested")
}

func (*Observer) PoolDrained(ctx context.Context, wait time.Duration, passes int) {
	trace.SpanFromContext(ctx).AddEvent("pool.drained", trace.WithAttributes(
		attribute.Int64("wait_ms", wait.Milliseconds()),
		attribute.Int("passes", passes),
	))
}

func (*Observer) TickScheduled(ctx context.Context, skipped bool) {
	trace.SpanFromContext(ctx).AddEvent("periodic.tick", trace.WithAttributes(
		attribute.Bool("skipped", skipped),
	))
}
