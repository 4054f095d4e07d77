package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/tangle/internal/record"
)

// WorkerTally is one worker's contribution to a run.
type WorkerTally struct {
	Worker int
	// Events is the number of events the worker finished.
	Events int64
	// ThresholdEvents counts events whose two central crystals both exceed
	// the energy threshold, regardless of scatter qualification.
	ThresholdEvents int64
	// Emitted counts records handed to the sink.
	Emitted    int64
	Categories record.Categories
}

// RunAggregate reduces worker tallies into one run total.
//
// Thread-safety: Merge may be called from any worker goroutine; every
// method takes the aggregate's mutex. Only one mutex is ever held.
type RunAggregate struct {
	mu         sync.Mutex
	runID      int
	total      int64
	events     int64
	emitted    int64
	workers    int
	categories record.Categories
	reported   bool
}

// NewRunAggregate creates an aggregate for run 0.
func NewRunAggregate() *RunAggregate {
	return &RunAggregate{}
}

// Begin zeroes the aggregate for a new run.
func (a *RunAggregate) Begin(runID int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runID = runID
	a.total, a.events, a.emitted = 0, 0, 0
	a.workers = 0
	a.categories = record.Categories{}
	a.reported = false
}

// Merge adds one worker's tally.
func (a *RunAggregate) Merge(t WorkerTally) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total += t.ThresholdEvents
	a.events += t.Events
	a.emitted += t.Emitted
	a.categories.Add(t.Categories)
	a.workers++
}

// Total returns the merged threshold-event count.
func (a *RunAggregate) Total() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Categories returns the merged scatter-order pairing tallies.
func (a *RunAggregate) Categories() record.Categories {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.categories
}

// Summary returns a snapshot of the merged run.
func (a *RunAggregate) Summary() record.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summaryLocked()
}

func (a *RunAggregate) summaryLocked() record.RunSummary {
	return record.RunSummary{
		RunID:      a.runID,
		Total:      a.total,
		Events:     a.events,
		Emitted:    a.emitted,
		Workers:    a.workers,
		Categories: a.categories,
	}
}

// Report hands the run summary to r exactly once per run. The lock is not
// held while r runs.
func (a *RunAggregate) Report(ctx context.Context, r record.Reporter) error {
	a.mu.Lock()
	if a.reported {
		a.mu.Unlock()
		return fmt.Errorf("report run %d: %w", a.runID, ErrAlreadyReported)
	}
	a.reported = true
	sum := a.summaryLocked()
	a.mu.Unlock()

	if err := r.ReportRunTotal(ctx, sum); err != nil {
		return fmt.Errorf("report run %d: %w", sum.RunID, err)
	}
	return nil
}
