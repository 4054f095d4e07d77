package record

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/roach88/tangle/internal/geom"
)

// CSVSink writes records as CSV rows to a single writer shared by every
// worker. A mutex is held for the whole of each row so rows never
// interleave. The header is written before the first row.
type CSVSink struct {
	mu       sync.Mutex
	w        *csv.Writer
	elements int
	header   bool
}

// NewCSVSink creates a sink for a ring of the given crystal count.
func NewCSVSink(w io.Writer, elements int) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w), elements: elements}
}

// Header returns the column names.
func (s *CSVSink) Header() []string {
	n := s.elements
	cols := []string{"run", "event", "worker"}
	for i := 0; i < n; i++ {
		cols = append(cols, fmt.Sprintf("crystal%d", i))
	}
	cols = append(cols, "coll1", "coll2")
	for i := 0; i < n; i++ {
		cols = append(cols, fmt.Sprintf("compt%d", i))
	}
	for i := 0; i < n; i++ {
		cols = append(cols, fmt.Sprintf("phot%d", i))
	}
	for _, side := range []string{"A", "B"} {
		for _, pos := range []string{"1", "2", "P1", "P2"} {
			for _, c := range []string{"X", "Y", "Z"} {
				cols = append(cols, "pos"+side+"_"+pos+c)
			}
		}
		cols = append(cols,
			"scatters"+side,
			"theta"+side, "phi"+side,
			"theta"+side+"2", "phi"+side+"2",
			"thetaPol"+side,
		)
	}
	return append(cols,
		"dphi", "dphiA1B2", "dphiA2B1", "dphiA2B2",
		"hitsA", "hitsB", "eDepEvent",
	)
}

// Emit writes one row.
func (s *CSVSink) Emit(ctx context.Context, rec *Record) error {
	row := s.row(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.header {
		if err := s.w.Write(s.Header()); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		s.header = true
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("write csv record run=%d event=%d: %w", rec.RunID, rec.EventID, err)
	}
	s.w.Flush()
	return s.w.Error()
}

// ReportRunTotal appends the run summary lines.
func (s *CSVSink) ReportRunTotal(ctx context.Context, sum RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := [][]string{
		{"#", "RunId", "nEventsPh"},
		{"#", strconv.Itoa(sum.RunID), strconv.FormatInt(sum.Total, 10)},
	}
	if err := s.w.WriteAll(rows); err != nil {
		return fmt.Errorf("write run summary: %w", err)
	}
	return nil
}

func (s *CSVSink) row(rec *Record) []string {
	row := make([]string, 0, len(s.Header()))
	row = append(row,
		strconv.Itoa(rec.RunID),
		strconv.FormatInt(rec.EventID, 10),
		strconv.Itoa(rec.Worker),
	)
	for _, e := range rec.Deposits {
		row = append(row, ftoa(e))
	}
	row = append(row, ftoa(rec.CollimatorDeposit[0]), ftoa(rec.CollimatorDeposit[1]))
	for _, c := range rec.Compton {
		row = append(row, strconv.Itoa(c))
	}
	for _, c := range rec.Photo {
		row = append(row, strconv.Itoa(c))
	}
	for _, side := range rec.Sides {
		for _, v := range []geom.Vec{side.FirstHit, side.SecondHit, side.FirstPhoto, side.SecondPhoto} {
			row = append(row, ftoa(v.X), ftoa(v.Y), ftoa(v.Z))
		}
		row = append(row,
			strconv.Itoa(side.Scatters),
			ftoa(side.Theta1), ftoa(side.Phi1),
			ftoa(side.Theta2), ftoa(side.Phi2),
			ftoa(side.Polarization),
		)
	}
	return append(row,
		ftoa(rec.DeltaPhi),
		ftoa(rec.Deltas[0][1]), ftoa(rec.Deltas[1][0]), ftoa(rec.Deltas[1][1]),
		strconv.Itoa(rec.HitsA), strconv.Itoa(rec.HitsB), ftoa(rec.EventDeposit),
	)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', 10, 64)
}
