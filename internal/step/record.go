// Package step defines the step record emitted by the transport
// collaborator: one atomic propagation or interaction increment of a track.
package step

import (
	"fmt"

	"github.com/roach88/tangle/internal/geom"
)

// Particle is the kind of particle taking the step.
type Particle string

const (
	Gamma    Particle = "gamma"
	Electron Particle = "e-"
	Positron Particle = "e+"
)

// Process is the interaction that limited the step.
type Process string

const (
	Compton       Process = "compt"
	Photoelectric Process = "phot"
	Rayleigh      Process = "Rayl"
	Transport     Process = "Transportation"
	Annihilation  Process = "annihil"
)

// VolumeKind classifies the physical volume struck by a step.
type VolumeKind string

const (
	// None is any non-instrumented volume (world, air).
	None VolumeKind = ""
	// Crystal is an instrumented scintillator; Copy is the element index.
	Crystal VolumeKind = "crystal"
	// Collimator is a passive lead collimator; Copy selects which one.
	Collimator VolumeKind = "collimator"
	// Scatterer is the passive scattering disc.
	Scatterer VolumeKind = "scatterer"
)

// Volume identifies the volume at the post-step point.
type Volume struct {
	Kind VolumeKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Copy int        `json:"copy,omitempty" yaml:"copy,omitempty"`
}

// InCrystal returns a crystal volume with the given element index.
func InCrystal(idx int) Volume {
	return Volume{Kind: Crystal, Copy: idx}
}

// Element returns the crystal index, or -1 when the volume is not a crystal.
func (v Volume) Element() int {
	if v.Kind != Crystal {
		return -1
	}
	return v.Copy
}

func (v Volume) String() string {
	if v.Kind == None {
		return "none"
	}
	return fmt.Sprintf("%s[%d]", v.Kind, v.Copy)
}

// Point is one end of a step.
type Point struct {
	Position     geom.Vec  `json:"pos"`
	Direction    geom.Vec  `json:"dir"`
	Polarization *geom.Vec `json:"pol,omitempty"`
}

// Record is a single step. It is passed by pointer for speed but must be
// treated as immutable by consumers.
type Record struct {
	TrackID  int      `json:"track"`
	StepNo   int      `json:"step"`
	Particle Particle `json:"particle"`
	Process  Process  `json:"process"`
	Pre      Point    `json:"pre"`
	Post     Point    `json:"post"`
	// EnergyDeposit is in MeV.
	EnergyDeposit float64 `json:"edep,omitempty"`
	Volume        Volume  `json:"volume"`
}

// IsPhoton reports whether the step belongs to a photon.
func (r *Record) IsPhoton() bool {
	return r.Particle == Gamma
}

// Polarizations returns the pre- and post-step polarization when both are
// present.
func (r *Record) Polarizations() (pre, post geom.Vec, ok bool) {
	if r.Pre.Polarization == nil || r.Post.Polarization == nil {
		return geom.Vec{}, geom.Vec{}, false
	}
	return *r.Pre.Polarization, *r.Post.Polarization, true
}
