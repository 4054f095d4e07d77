package record

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// MemorySink keeps every record and summary in memory. Safe for concurrent
// use; used by tests and the scenario harness.
type MemorySink struct {
	mu        sync.Mutex
	records   []Record
	summaries []RunSummary
}

// Emit stores a copy of rec.
func (m *MemorySink) Emit(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

// ReportRunTotal stores the summary.
func (m *MemorySink) ReportRunTotal(ctx context.Context, sum RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, sum)
	return nil
}

// Records returns a snapshot of the stored records.
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Summaries returns a snapshot of the stored run summaries.
func (m *MemorySink) Summaries() []RunSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RunSummary, len(m.summaries))
	copy(out, m.summaries)
	return out
}

// MultiSink fans records out to several sinks. Every sink is attempted;
// the errors are joined.
type MultiSink []Sink

// Emit forwards rec to each sink in order.
func (ms MultiSink) Emit(ctx context.Context, rec *Record) error {
	var errs []error
	for _, s := range ms {
		if err := s.Emit(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiReporter fans a run summary out to several reporters.
type MultiReporter []Reporter

// ReportRunTotal forwards sum to each reporter in order.
func (mr MultiReporter) ReportRunTotal(ctx context.Context, sum RunSummary) error {
	var errs []error
	for _, r := range mr {
		if err := r.ReportRunTotal(ctx, sum); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogReporter logs the run summary through slog.
type LogReporter struct{}

// ReportRunTotal logs sum at Info level.
func (LogReporter) ReportRunTotal(ctx context.Context, sum RunSummary) error {
	slog.InfoContext(ctx, "run complete",
		"run", sum.RunID,
		"threshold_events", sum.Total,
		"events", sum.Events,
		"records", sum.Emitted,
		"workers", sum.Workers,
		"first_first", sum.Categories[0][0],
		"second_first", sum.Categories[1][0],
		"first_second", sum.Categories[0][1],
		"second_second", sum.Categories[1][1],
	)
	return nil
}

// Discard drops every record.
type Discard struct{}

// Emit does nothing.
func (Discard) Emit(context.Context, *Record) error { return nil }
