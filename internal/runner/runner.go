// Package runner drives one simulation run across a pool of workers.
//
// Events are read from a transport.Source by a single dispatcher and handed
// to worker i mod W, where i is the event's position in the stream. Each
// worker owns one engine.Engine; the only shared state is the sink and the
// engine.RunAggregate. Worker 0 is the primary: once every worker has
// merged its tally, it reports the run total exactly once.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/tangle/internal/config"
	"github.com/roach88/tangle/internal/engine"
	"github.com/roach88/tangle/internal/record"
	"github.com/roach88/tangle/internal/step"
	"github.com/roach88/tangle/internal/transport"
)

// DefaultQueueDepth is the per-worker event buffer.
const DefaultQueueDepth = 64

type options struct {
	workers    int
	runID      int
	queueDepth int
	metrics    *engine.Metrics
}

// Option configures a run.
type Option func(*options)

// WithWorkers overrides the configured worker count.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithRunID sets the run number stamped on records.
func WithRunID(id int) Option {
	return func(o *options) {
		o.runID = id
	}
}

// WithQueueDepth sets the per-worker event buffer.
func WithQueueDepth(n int) Option {
	return func(o *options) {
		o.queueDepth = n
	}
}

// WithMetrics attaches engine metrics shared by all workers.
func WithMetrics(m *engine.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Run reconstructs every event of src. Records go to sink; the run total
// goes to rep once, or to a record.LogReporter when rep is nil. The
// returned summary holds whatever was merged, even on error.
func Run(ctx context.Context, cfg config.Config, src transport.Source, sink record.Sink, rep record.Reporter, opts ...Option) (record.RunSummary, error) {
	o := options{workers: cfg.Workers, queueDepth: DefaultQueueDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if rep == nil {
		rep = record.LogReporter{}
	}

	agg := engine.NewRunAggregate()
	agg.Begin(o.runID)

	engines := make([]*engine.Engine, o.workers)
	for w := range engines {
		e, err := engine.New(cfg, sink,
			engine.WithWorker(w),
			engine.WithAggregate(agg),
			engine.WithMetrics(o.metrics),
		)
		if err != nil {
			return agg.Summary(), fmt.Errorf("run %d: %w", o.runID, err)
		}
		engines[w] = e
	}

	slog.Info("run started", "run", o.runID, "workers", o.workers)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan step.Event, o.workers)
	for w := range queues {
		queues[w] = make(chan step.Event, o.queueDepth)
	}

	// failed is set before a goroutine signals completion, so the primary
	// never reports a run that lost events.
	var failed atomic.Bool

	g.Go(func() error {
		err := dispatch(gctx, src, queues)
		if err != nil {
			failed.Store(true)
		}
		for _, q := range queues {
			close(q)
		}
		return err
	})

	var merged sync.WaitGroup
	merged.Add(o.workers)
	for w, e := range engines {
		g.Go(func() error {
			err := work(gctx, e, o.runID, queues[w])
			if err != nil {
				failed.Store(true)
			}
			merged.Done()
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			if w != 0 {
				return nil
			}
			merged.Wait()
			if failed.Load() || gctx.Err() != nil {
				return nil
			}
			return agg.Report(gctx, rep)
		})
	}

	err := g.Wait()
	sum := agg.Summary()
	if err != nil {
		return sum, fmt.Errorf("run %d: %w", o.runID, err)
	}

	slog.Info("run finished",
		"run", o.runID,
		"events", sum.Events,
		"threshold_events", sum.Total,
		"records", sum.Emitted,
		"elapsed", time.Since(start),
	)
	return sum, nil
}

// dispatch sends the i-th event to queue i mod len(queues) until the source
// is drained or the run is cancelled.
func dispatch(ctx context.Context, src transport.Source, queues []chan step.Event) error {
	for i := 0; ; i++ {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		select {
		case queues[i%len(queues)] <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// work drives one engine over its queue. The run is always closed so the
// worker's tally is merged even when an event fails.
func work(ctx context.Context, e *engine.Engine, runID int, queue <-chan step.Event) (err error) {
	if err := e.BeginRun(runID); err != nil {
		return err
	}
	defer func() {
		if endErr := e.EndRun(runID); err == nil {
			err = endErr
		}
	}()

	for ev := range queue {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.BeginEvent(ev.ID); err != nil {
			return err
		}
		for i := range ev.Steps {
			if err := e.Step(&ev.Steps[i]); err != nil {
				return err
			}
		}
		if err := e.EndEvent(ctx); err != nil {
			return err
		}
	}
	return nil
}
