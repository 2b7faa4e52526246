// Package prom exports supervise lifecycle events as Prometheus
// metrics.
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NetPo4ki/go-supervise/supervise"
)

// Observer implements supervise.Observer on top of a Prometheus
// registry.
type Observer struct {
	active      prometheus.Gauge
	started     prometheus.Counter
	finished    *prometheus.CounterVec
	duration    prometheus.Histogram
	cancels     prometheus.Counter
	drains      prometheus.Counter
	drainWait   prometheus.Histogram
	drainPasses prometheus.Histogram
	ticks       *prometheus.CounterVec
}

// New builds the observer and registers its collectors with reg.
func New(reg prometheus.Registerer) *Observer {
	o := &Observer{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "supervise_tasks_active",
			Help: "Tasks currently running.",
		}),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "supervise_tasks_started_total",
			Help: "Tasks started.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supervise_tasks_finished_total",
			Help: "Tasks finished, by terminal outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "supervise_task_duration_seconds",
			Help:    "Task run time from start to terminal state.",
			Buckets: prometheus.DefBuckets,
		}),
		cancels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "supervise_cancel_requests_total",
			Help: "First cancellation requests, one per handle.",
		}),
		drains: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "supervise_pool_drains_total",
			Help: "Completed pool teardowns.",
		}),
		drainWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "supervise_pool_drain_seconds",
			Help:    "Time spent draining a pool to quiescence.",
			Buckets: prometheus.DefBuckets,
		}),
		drainPasses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "supervise_pool_drain_passes",
			Help:    "Cancellation passes needed to drain a pool.",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supervise_periodic_ticks_total",
			Help: "Periodic ticks, by whether the overlap policy skipped them.",
		}, []string{"skipped"}),
	}
	reg.MustRegister(
		o.active, o.started, o.finished, o.duration,
		o.cancels, o.drains, o.drainWait, o.drainPasses, o.ticks,
	)
	return o
}

func (o *Observer) TaskStarted(context.Context) {
	o.active.Inc()
	o.started.Inc()
}

func (o *Observer) TaskFinished(_ context.Context, dur time.Duration, outcome supervise.Outcome, _ error) {
	o.active.Dec()
	o.finished.WithLabelValues(outcome.String()).Inc()
	o.duration.Observe(dur.Seconds())
}

func (o *Observer) CancelRequested(context.Context) {
	o.cancels.Inc()
}

func (o *Observer) PoolDrained(_ context.Context, wait time.Duration, passes int) {
	o.drains.Inc()
	o.drainWait.Observe(wait.Seconds())
	o.drainPasses.Observe(float64(passes))
}

func (o *Observer) TickScheduled(_ context.Context, skipped bool) {
	o.ticks.WithLabelValues(strconv.FormatBool(skipped)).Inc()
}
