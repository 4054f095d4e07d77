package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tangle/internal/config"
	"github.com/roach88/tangle/internal/record"
)

// Run is a stored run with its configuration snapshot and reported totals.
type Run struct {
	ID       int
	UID      string
	Elements int
	Config   config.Config
	Summary  record.RunSummary
	// Reported is false for runs that never reached EndRun.
	Reported bool
}

// ReadRun retrieves a single run by id, including its category tallies.
// Returns ErrRunNotFound if the run does not exist.
func (s *Store) ReadRun(ctx context.Context, runID int) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uid, elements, config, total, events, emitted, workers, reported
		FROM runs
		WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %d: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %d: %w", runID, err)
	}

	cats, err := s.readCategories(ctx, runID)
	if err != nil {
		return Run{}, err
	}
	run.Summary.Categories = cats

	return run, nil
}

// ListRuns returns every run ordered by id. Category tallies are not
// loaded; use ReadRun for those.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, uid, elements, config, total, events, emitted, workers, reported
		FROM runs
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// ReadRecords returns all records of a run ordered by event id.
// Returns an empty slice (not nil) if the run has no records.
func (s *Store) ReadRecords(ctx context.Context, runID int) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body
		FROM records
		WHERE run_id = ?
		ORDER BY event_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	recs := []record.Record{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := unmarshalRecord(body)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return recs, nil
}

// DeltaPhis returns the deltaPhi column of a run ordered by event id.
func (s *Store) DeltaPhis(ctx context.Context, runID int) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT delta_phi
		FROM records
		WHERE run_id = ?
		ORDER BY event_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query delta phi: %w", err)
	}
	defer rows.Close()

	out := []float64{}
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan delta phi: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delta phi: %w", err)
	}

	return out, nil
}

func (s *Store) readCategories(ctx context.Context, runID int) (record.Categories, error) {
	var cats record.Categories

	rows, err := s.db.QueryContext(ctx, `
		SELECT order_a, order_b, count
		FROM categories
		WHERE run_id = ?
		ORDER BY order_a ASC, order_b ASC
	`, runID)
	if err != nil {
		return cats, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a, b int
		var n int64
		if err := rows.Scan(&a, &b, &n); err != nil {
			return cats, fmt.Errorf("scan category: %w", err)
		}
		cats[a-1][b-1] = n
	}
	if err := rows.Err(); err != nil {
		return cats, fmt.Errorf("iterate categories: %w", err)
	}

	return cats, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var cfgJSON string

	if err := row.Scan(
		&run.ID, &run.UID, &run.Elements, &cfgJSON,
		&run.Summary.Total, &run.Summary.Events, &run.Summary.Emitted, &run.Summary.Workers,
		&run.Reported,
	); err != nil {
		return Run{}, err
	}
	run.Summary.RunID = run.ID

	cfg, err := unmarshalConfig(cfgJSON)
	if err != nil {
		return Run{}, err
	}
	run.Config = cfg

	return run, nil
}
