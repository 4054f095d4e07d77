// Package testutil provides builders for hand-written step streams and
// deterministic id generators used across package tests.
package testutil

import (
	"github.com/roach88/tangle/internal/geom"
	"github.com/roach88/tangle/internal/step"
)

var (
	// PlusX is the nominal direction toward side A.
	PlusX = geom.Vec{X: 1}
	// MinusX is the nominal direction toward side B.
	MinusX = geom.Vec{X: -1}
)

// Scattered returns the unit direction with polar angle theta and azimuth
// phi (degrees) in the default frame around beam.
func Scattered(beam geom.Vec, theta, phi float64) geom.Vec {
	return geom.DefaultFrame(beam).Direction(theta, phi)
}

// HitAt is the post-step position the builders assign to a step. It is
// unique per (track, step, element) so hit assertions can tell steps apart.
func HitAt(track, stepNo, el int) geom.Vec {
	return geom.Vec{X: float64(el), Y: float64(stepNo), Z: float64(track)}
}

// Compton builds a photon Compton step inside crystal el travelling along
// pre before and post after the step.
func Compton(track, stepNo, el int, pre, post geom.Vec, edep float64) *step.Record {
	return &step.Record{
		TrackID:       track,
		StepNo:        stepNo,
		Particle:      step.Gamma,
		Process:       step.Compton,
		Pre:           step.Point{Direction: pre},
		Post:          step.Point{Position: HitAt(track, stepNo, el), Direction: post},
		EnergyDeposit: edep,
		Volume:        step.InCrystal(el),
	}
}

// ComptonAngles is Compton with the post direction given as θ/φ around pre.
func ComptonAngles(track, stepNo, el int, pre geom.Vec, theta, phi, edep float64) *step.Record {
	return Compton(track, stepNo, el, pre, Scattered(pre, theta, phi), edep)
}

// Photo builds a photoelectric absorption in crystal el.
func Photo(track, stepNo, el int, dir geom.Vec, edep float64) *step.Record {
	return &step.Record{
		TrackID:       track,
		StepNo:        stepNo,
		Particle:      step.Gamma,
		Process:       step.Photoelectric,
		Pre:           step.Point{Direction: dir},
		Post:          step.Point{Position: HitAt(track, stepNo, el), Direction: dir},
		EnergyDeposit: edep,
		Volume:        step.InCrystal(el),
	}
}

// Electron builds an electron ionisation step depositing edep in crystal el.
func Electron(track, stepNo, el int, edep float64) *step.Record {
	return &step.Record{
		TrackID:       track,
		StepNo:        stepNo,
		Particle:      step.Electron,
		Process:       "eIoni",
		Post:          step.Point{Position: HitAt(track, stepNo, el)},
		EnergyDeposit: edep,
		Volume:        step.InCrystal(el),
	}
}

// Transport builds a photon step that crosses the world without
// interacting.
func Transport(track, stepNo int, dir geom.Vec) *step.Record {
	return &step.Record{
		TrackID:  track,
		StepNo:   stepNo,
		Particle: step.Gamma,
		Process:  step.Transport,
		Pre:      step.Point{Direction: dir},
		Post:     step.Point{Direction: dir},
	}
}

// InCollimator builds a step depositing edep in collimator copyNo.
func InCollimator(track, stepNo, copyNo int, edep float64) *step.Record {
	return &step.Record{
		TrackID:       track,
		StepNo:        stepNo,
		Particle:      step.Gamma,
		Process:       step.Compton,
		Pre:           step.Point{Direction: PlusX},
		Post:          step.Point{Direction: PlusX},
		EnergyDeposit: edep,
		Volume:        step.Volume{Kind: step.Collimator, Copy: copyNo},
	}
}

// Polarized sets the pre- and post-step polarization of rec and returns it.
func Polarized(rec *step.Record, pre, post geom.Vec) *step.Record {
	rec.Pre.Polarization = &pre
	rec.Post.Polarization = &post
	return rec
}

// CoincidenceEvent is the reference back-to-back event: one Compton scatter
// on each side of the 18-crystal ring, with θ/φ of 30/10 on side A and
// 40/-20 on side B, depositing 0.2 MeV in crystal 4 and 0.3 MeV in crystal 13.
func CoincidenceEvent(id int64) step.Event {
	return step.Event{
		ID: id,
		Steps: []step.Record{
			*ComptonAngles(1, 1, 4, PlusX, 30, 10, 0.2),
			*ComptonAngles(2, 1, 13, MinusX, 40, -20, 0.3),
		},
	}
}
