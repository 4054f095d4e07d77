package engine

import (
	"github.com/roach88/tangle/internal/detector"
	"github.com/roach88/tangle/internal/geom"
	"github.com/roach88/tangle/internal/record"
)

// Classification is the end-of-event verdict.
type Classification struct {
	// Qualifying is true when both sides saw at least one scatter.
	Qualifying bool
	// CentralAbove is true when both central crystals exceed the threshold.
	CentralAbove bool
	// Pairs[i][j] is true when side A reached scatter order i and side B
	// reached order j (0 = first scatter).
	Pairs [2][2]bool
	// Deltas holds the wrapped azimuth sums, AbsentDelta where a pairing
	// is missing.
	Deltas record.Deltas

	Hits    [detector.NumSides]int
	Deposit float64
}

// Classify evaluates st against the layout and a threshold in MeV. It does
// not modify st.
func Classify(st *EventState, l *detector.Layout, thr float64) Classification {
	a, b := &st.Sides[detector.SideA], &st.Sides[detector.SideB]

	var c Classification
	for i := range c.Pairs {
		for j := range c.Pairs[i] {
			c.Pairs[i][j] = a.Scatters >= i+1 && b.Scatters >= j+1
			if c.Pairs[i][j] {
				c.Deltas[i][j] = geom.Wrap360(a.phi(i) + b.phi(j))
			} else {
				c.Deltas[i][j] = record.AbsentDelta
			}
		}
	}
	c.Qualifying = c.Pairs[0][0]
	c.CentralAbove = st.Deposits.CentralAbove(l, thr)
	c.Hits, c.Deposit = st.Deposits.AboveThreshold(l, thr)
	return c
}

// DeltaPhi is the first-scatter azimuth sum.
func (c Classification) DeltaPhi() float64 {
	return c.Deltas[0][0]
}

// Record builds the output record for st. Slices are copied.
func (c Classification) Record(st *EventState, runID, worker int) *record.Record {
	d := st.Deposits.clone()
	rec := &record.Record{
		RunID:             runID,
		EventID:           st.EventID,
		Worker:            worker,
		Deposits:          d.Energy,
		Compton:           d.Compton,
		Photo:             d.Photo,
		CollimatorDeposit: d.Collimator,
		DeltaPhi:          c.DeltaPhi(),
		Deltas:            c.Deltas,
		HitsA:             c.Hits[detector.SideA],
		HitsB:             c.Hits[detector.SideB],
		EventDeposit:      c.Deposit,
	}
	for _, side := range detector.Sides {
		s := &st.Sides[side]
		rec.Sides[side] = record.Side{
			Scatters:     s.Scatters,
			FirstHit:     s.FirstHit,
			SecondHit:    s.SecondHit,
			FirstPhoto:   s.FirstPhoto,
			SecondPhoto:  s.SecondPhoto,
			Theta1:       s.Theta1,
			Phi1:         s.Phi1,
			Theta2:       s.Theta2,
			Phi2:         s.Phi2,
			Polarization: s.Polarization,
		}
	}
	return rec
}
