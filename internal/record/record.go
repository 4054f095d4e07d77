// Package record defines the per-event coincidence record and the sinks
// that receive records and run totals.
package record

import (
	"context"

	"github.com/roach88/tangle/internal/geom"
)

// Sentinels for observables that did not occur in an event.
const (
	// AbsentCoord fills every component of a missing hit position (mm).
	AbsentCoord = -99.0
	// AbsentAngle fills a missing θ or φ (degrees). It lies outside every
	// valid range.
	AbsentAngle = 500.0
	// AbsentDelta fills a deltaPhi that could not be formed.
	AbsentDelta = -99.0
)

// AbsentPosition is the sentinel hit position.
var AbsentPosition = geom.Vec{X: AbsentCoord, Y: AbsentCoord, Z: AbsentCoord}

// Side holds the observables of one detector half.
type Side struct {
	Scatters int `json:"scatters"`

	FirstHit  geom.Vec `json:"first_hit"`
	SecondHit geom.Vec `json:"second_hit"`

	FirstPhoto  geom.Vec `json:"first_photo"`
	SecondPhoto geom.Vec `json:"second_photo"`

	Theta1 float64 `json:"theta1"`
	Phi1   float64 `json:"phi1"`
	Theta2 float64 `json:"theta2"`
	Phi2   float64 `json:"phi2"`

	// Polarization is the angle between pre- and post-step polarization at
	// the first scatter, or AbsentAngle.
	Polarization float64 `json:"polarization"`
}

// Deltas are the azimuth sums for each scatter-order pairing, wrapped to
// [0, 360). Index is [order on A][order on B], order 0 = first scatter.
type Deltas [2][2]float64

// Record is the full observable tuple of one coincidence event.
type Record struct {
	RunID   int   `json:"run_id"`
	EventID int64 `json:"event_id"`
	Worker  int   `json:"worker"`

	// Deposits is the energy per crystal in MeV.
	Deposits []float64 `json:"deposits"`
	Compton  []int     `json:"compton"`
	Photo    []int     `json:"photo"`

	CollimatorDeposit [2]float64 `json:"collimator_deposit"`

	Sides [2]Side `json:"sides"`

	DeltaPhi float64 `json:"delta_phi"`
	Deltas   Deltas  `json:"deltas"`

	HitsA        int     `json:"hits_a"`
	HitsB        int     `json:"hits_b"`
	EventDeposit float64 `json:"event_deposit"`
}

// Categories counts events per scatter-order pairing, indexed like Deltas.
type Categories [2][2]int64

// Add accumulates other into c.
func (c *Categories) Add(other Categories) {
	for i := range c {
		for j := range c[i] {
			c[i][j] += other[i][j]
		}
	}
}

// RunSummary is what the primary worker reports once per run.
type RunSummary struct {
	RunID      int        `json:"run_id"`
	Total      int64      `json:"total"`
	Events     int64      `json:"events"`
	Emitted    int64      `json:"emitted"`
	Workers    int        `json:"workers"`
	Categories Categories `json:"categories"`
}

// Sink receives at most one record per event.
//
// Implementations shared between workers must serialise Emit internally.
type Sink interface {
	Emit(ctx context.Context, rec *Record) error
}

// Reporter receives the aggregated run total once per run.
type Reporter interface {
	ReportRunTotal(ctx context.Context, sum RunSummary) error
}
