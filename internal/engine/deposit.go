package engine

import (
	"gonum.org/v1/gonum/floats"

	"github.com/roach88/tangle/internal/detector"
)

// Deposits accumulates per-crystal energy and interaction tallies for the
// current event. Entries are never negative.
type Deposits struct {
	// Energy per crystal in MeV.
	Energy []float64
	// Compton steps per crystal.
	Compton []int
	// Photoelectric absorptions per crystal.
	Photo []int
	// Collimator holds deposits in the two passive collimators, kept apart
	// from the crystal sums.
	Collimator [2]float64
}

func newDeposits(n int) Deposits {
	return Deposits{
		Energy:  make([]float64, n),
		Compton: make([]int, n),
		Photo:   make([]int, n),
	}
}

// Reset zeroes every entry in place.
func (d *Deposits) Reset() {
	clear(d.Energy)
	clear(d.Compton)
	clear(d.Photo)
	d.Collimator = [2]float64{}
}

// Add deposits e MeV into crystal idx. Non-positive deposits are ignored.
func (d *Deposits) Add(idx int, e float64) {
	if e > 0 {
		d.Energy[idx] += e
	}
}

// AddCollimator deposits e MeV into collimator copy. Unknown copies and
// non-positive deposits are ignored.
func (d *Deposits) AddCollimator(copyNo int, e float64) {
	if e > 0 && copyNo >= 0 && copyNo < len(d.Collimator) {
		d.Collimator[copyNo] += e
	}
}

// Total is the summed crystal deposit of the event.
func (d *Deposits) Total() float64 {
	return floats.Sum(d.Energy)
}

// AboveThreshold counts, per side, the crystals whose deposit exceeds thr
// and returns the summed deposit of those crystals.
func (d *Deposits) AboveThreshold(l *detector.Layout, thr float64) (hits [detector.NumSides]int, sum float64) {
	for i, e := range d.Energy {
		if e > thr {
			hits[l.SideOf(i)]++
			sum += e
		}
	}
	return hits, sum
}

// CentralAbove reports whether the central crystal of both sides exceeds
// thr.
func (d *Deposits) CentralAbove(l *detector.Layout, thr float64) bool {
	return d.Energy[l.Central(detector.SideA)] > thr &&
		d.Energy[l.Central(detector.SideB)] > thr
}

func (d *Deposits) clone() Deposits {
	c := Deposits{
		Energy:     make([]float64, len(d.Energy)),
		Compton:    make([]int, len(d.Compton)),
		Photo:      make([]int, len(d.Photo)),
		Collimator: d.Collimator,
	}
	copy(c.Energy, d.Energy)
	copy(c.Compton, d.Compton)
	copy(c.Photo, d.Photo)
	return c
}
