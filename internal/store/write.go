package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tangle/internal/config"
	"github.com/roach88/tangle/internal/detector"
	"github.com/roach88/tangle/internal/record"
)

var (
	// ErrRunExists is returned by BeginRun for a run id already in the store.
	ErrRunExists = errors.New("run already recorded")
	// ErrRunNotFound is returned for a run id the store has never seen.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunReported is returned when a run total is reported twice.
	ErrRunReported = errors.New("run total already reported")
)

var (
	_ record.Sink     = (*Store)(nil)
	_ record.Reporter = (*Store)(nil)
)

// BeginRun registers a run with its configuration snapshot. Records for the
// run can only be emitted after this call.
func (s *Store) BeginRun(ctx context.Context, runID int, uid string, cfg config.Config) error {
	cfgJSON, err := marshalConfig(cfg)
	if err != nil {
		return fmt.Errorf("begin run %d: %w", runID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, uid, elements, config)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, runID, uid, cfg.Elements, cfgJSON)
	if err != nil {
		return fmt.Errorf("begin run %d: %w", runID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("begin run %d: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("begin run %d: %w", runID, ErrRunExists)
	}
	return nil
}

// NextRunID returns one more than the highest stored run id, or 0 for an
// empty store.
func (s *Store) NextRunID(ctx context.Context) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), -1) + 1 FROM runs`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next run id: %w", err)
	}
	return next, nil
}

// Emit stores one record. Uses ON CONFLICT DO NOTHING, so re-emitting the
// same event of a run is a no-op. Safe for concurrent use by all workers.
func (s *Store) Emit(ctx context.Context, rec *record.Record) error {
	body, err := marshalRecord(rec)
	if err != nil {
		return fmt.Errorf("emit record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records
		(run_id, event_id, worker, scatters_a, scatters_b, delta_phi, event_deposit, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, event_id) DO NOTHING
	`,
		rec.RunID,
		rec.EventID,
		rec.Worker,
		rec.Sides[detector.SideA].Scatters,
		rec.Sides[detector.SideB].Scatters,
		finite(rec.DeltaPhi, record.AbsentDelta),
		rec.EventDeposit,
		body,
	)
	if err != nil {
		return fmt.Errorf("emit record: %w", err)
	}

	return nil
}

// ReportRunTotal stores the aggregated totals of a run begun with BeginRun.
// A run can be reported once.
func (s *Store) ReportRunTotal(ctx context.Context, sum record.RunSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("report run %d: %w", sum.RunID, err)
	}
	defer tx.Rollback()

	var reported bool
	err = tx.QueryRowContext(ctx, `SELECT reported FROM runs WHERE id = ?`, sum.RunID).Scan(&reported)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("report run %d: %w", sum.RunID, ErrRunNotFound)
	}
	if err != nil {
		return fmt.Errorf("report run %d: %w", sum.RunID, err)
	}
	if reported {
		return fmt.Errorf("report run %d: %w", sum.RunID, ErrRunReported)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE runs
		SET total = ?, events = ?, emitted = ?, workers = ?, reported = 1
		WHERE id = ?
	`, sum.Total, sum.Events, sum.Emitted, sum.Workers, sum.RunID); err != nil {
		return fmt.Errorf("report run %d: %w", sum.RunID, err)
	}

	for i := range sum.Categories {
		for j := range sum.Categories[i] {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO categories (run_id, order_a, order_b, count)
				VALUES (?, ?, ?, ?)
			`, sum.RunID, i+1, j+1, sum.Categories[i][j]); err != nil {
				return fmt.Errorf("report run %d: %w", sum.RunID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("report run %d: %w", sum.RunID, err)
	}
	return nil
}
