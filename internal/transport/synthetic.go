package transport

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/tangle/internal/config"
	"github.com/roach88/tangle/internal/detector"
	"github.com/roach88/tangle/internal/geom"
	"github.com/roach88/tangle/internal/step"
)

// Kinematic constants in MeV and degrees.
const (
	electronMass  = 0.511
	photonEnergy  = 0.511
	coneHalfAngle = 3.0
	phiSpread     = 20.0
)

// Interaction probabilities of the synthetic model.
const (
	pFirstScatter   = 0.75
	pSecondScatter  = 0.35
	pAbsorb         = 0.5
	pCentral        = 0.6
	pCollimator     = 0.05
	collimatorDepos = 0.002
)

// Synthetic generates reproducible events. Event i depends only on the
// seed and i, never on the order events are requested in.
type Synthetic struct {
	cfg    config.Config
	layout *detector.Layout
	roles  config.TrackRoles
	seed   uint64

	events int64
	next   int64
}

// NewSynthetic creates a generator of events events. A negative count is
// unbounded.
func NewSynthetic(cfg config.Config, seed uint64, events int64) (*Synthetic, error) {
	layout, err := cfg.Layout()
	if err != nil {
		return nil, fmt.Errorf("synthetic source: %w", err)
	}
	return &Synthetic{
		cfg:    cfg,
		layout: layout,
		roles:  cfg.Roles(),
		seed:   seed,
		events: events,
	}, nil
}

// Next returns the next event in id order, or io.EOF once the configured
// count is reached.
func (s *Synthetic) Next() (step.Event, error) {
	if s.events >= 0 && s.next >= s.events {
		return step.Event{}, io.EOF
	}
	ev := s.Event(s.next)
	s.next++
	return ev, nil
}

// Event builds event id.
func (s *Synthetic) Event(id int64) step.Event {
	g := &eventGen{
		src:    rand.NewPCG(s.seed, uint64(id)),
		layout: s.layout,
	}
	g.unit = distuv.Uniform{Min: 0, Max: 1, Src: g.src}

	ev := step.Event{ID: id}

	if s.cfg.Source == config.PositronSource {
		ev.Steps = append(ev.Steps, step.Record{
			TrackID:  1,
			StepNo:   1,
			Particle: step.Positron,
			Process:  step.Annihilation,
			Pre:      step.Point{Direction: geom.Vec{X: 1}},
			Post:     step.Point{Direction: geom.Vec{X: 1}},
		})
	}

	beam := s.layout.Axis(detector.SideA)
	if !s.cfg.FixedAxis {
		beam = g.cone(beam, coneHalfAngle)
	}

	phiA := g.uniform(-180, 180)
	psiA := g.uniform(0, 180)
	phiB, psiB := phiA, psiA
	switch s.cfg.Polarization {
	case config.PolPerpendicular:
		phiB = phiA + 90 + g.normal(phiSpread)
		psiB = psiA + 90
	case config.PolParallel:
		phiB = phiA + g.normal(phiSpread)
	default:
		phiB = g.uniform(-180, 180)
		psiB = g.uniform(0, 180)
	}

	ev.Steps = append(ev.Steps, g.photon(s.roles.Primary, detector.SideA, beam, phiA, psiA)...)
	ev.Steps = append(ev.Steps, g.photon(s.roles.Secondary, detector.SideB, r3.Scale(-1, beam), phiB, psiB)...)
	return ev
}

// eventGen holds the random state of one event.
type eventGen struct {
	src    rand.Source
	unit   distuv.Uniform
	layout *detector.Layout
}

func (g *eventGen) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.unit.Rand()
}

func (g *eventGen) normal(sigma float64) float64 {
	return distuv.Normal{Mu: 0, Sigma: sigma, Src: g.src}.Rand()
}

func (g *eventGen) chance(p float64) bool {
	return g.unit.Rand() < p
}

// cone tilts dir by a random angle up to half (degrees) about a random
// perpendicular axis.
func (g *eventGen) cone(dir geom.Vec, half float64) geom.Vec {
	f := geom.DefaultFrame(dir)
	return f.Direction(g.uniform(0, half), g.uniform(-180, 180))
}

// crystal picks the crystal a photon reaches on side.
func (g *eventGen) crystal(side detector.Side) int {
	if g.chance(pCentral) {
		return g.layout.Central(side)
	}
	half := g.layout.Len() / 2
	return int(side)*half + int(g.unit.Rand()*float64(half))%half
}

// neighbour returns another crystal on the same side as el.
func (g *eventGen) neighbour(el int) int {
	half := g.layout.Len() / 2
	base := el - el%half
	if half == 1 {
		return el
	}
	return base + (el-base+1+int(g.unit.Rand()*float64(half-1)))%half
}

// photon builds the steps of one photon travelling along beam toward side.
func (g *eventGen) photon(track int, side detector.Side, beam geom.Vec, phi, psi float64) []step.Record {
	var steps []step.Record
	n := 0
	next := func() int { n++; return n }

	dir := beam
	pol := polarization(beam, psi)
	energy := photonEnergy

	if g.chance(pCollimator) {
		steps = append(steps, step.Record{
			TrackID:       track,
			StepNo:        next(),
			Particle:      step.Gamma,
			Process:       step.Transport,
			Pre:           step.Point{Direction: dir},
			Post:          step.Point{Direction: dir},
			EnergyDeposit: collimatorDepos,
			Volume:        step.Volume{Kind: step.Collimator, Copy: int(side)},
		})
		energy -= collimatorDepos
	}

	if !g.chance(pFirstScatter) {
		steps = append(steps, step.Record{
			TrackID:  track,
			StepNo:   next(),
			Particle: step.Gamma,
			Process:  step.Transport,
			Pre:      step.Point{Direction: dir},
			Post:     step.Point{Direction: dir},
		})
		return steps
	}

	el := g.crystal(side)
	theta := math.Acos(g.uniform(-0.95, 0.95)) * 180 / math.Pi
	post := geom.DefaultFrame(dir).Direction(theta, phi)
	postPol := transverse(pol, post)
	dep, energy := compton(energy, theta)
	steps = append(steps, step.Record{
		TrackID:       track,
		StepNo:        next(),
		Particle:      step.Gamma,
		Process:       step.Compton,
		Pre:           step.Point{Direction: dir, Polarization: vecPtr(pol)},
		Post:          step.Point{Position: g.jitter(el), Direction: post, Polarization: vecPtr(postPol)},
		EnergyDeposit: dep,
		Volume:        step.InCrystal(el),
	})
	dir, pol = post, postPol

	if g.chance(pSecondScatter) {
		el = g.neighbour(el)
		theta2 := math.Acos(g.uniform(-0.95, 0.95)) * 180 / math.Pi
		post2 := geom.DefaultFrame(dir).Direction(theta2, g.uniform(-180, 180))
		dep2, rest := compton(energy, theta2)
		energy = rest
		steps = append(steps, step.Record{
			TrackID:       track,
			StepNo:        next(),
			Particle:      step.Gamma,
			Process:       step.Compton,
			Pre:           step.Point{Direction: dir, Polarization: vecPtr(pol)},
			Post:          step.Point{Position: g.jitter(el), Direction: post2},
			EnergyDeposit: dep2,
			Volume:        step.InCrystal(el),
		})
		dir = post2
	}

	if g.chance(pAbsorb) {
		steps = append(steps, step.Record{
			TrackID:       track,
			StepNo:        next(),
			Particle:      step.Gamma,
			Process:       step.Photoelectric,
			Pre:           step.Point{Direction: dir},
			Post:          step.Point{Position: g.jitter(el), Direction: dir},
			EnergyDeposit: energy,
			Volume:        step.InCrystal(el),
		})
	}
	return steps
}

// jitter returns a point inside crystal el.
func (g *eventGen) jitter(el int) geom.Vec {
	c := g.layout.Position(el)
	return geom.Vec{
		X: c.X + g.uniform(-detector.CrystalDX/2, detector.CrystalDX/2),
		Y: c.Y + g.uniform(-detector.CrystalDY/2, detector.CrystalDY/2),
		Z: c.Z + g.uniform(-detector.CrystalDZ/2, detector.CrystalDZ/2),
	}
}

// compton returns the deposited and the remaining photon energy for a
// scatter through theta degrees.
func compton(e, theta float64) (deposit, scattered float64) {
	scattered = e / (1 + e/electronMass*(1-math.Cos(theta*math.Pi/180)))
	return e - scattered, scattered
}

// polarization is the frame X axis around beam rotated by psi degrees.
func polarization(beam geom.Vec, psi float64) geom.Vec {
	x := geom.DefaultFrame(beam).X
	return r3.NewRotation(psi*math.Pi/180, beam).Rotate(x)
}

// transverse projects pol onto the plane perpendicular to dir.
func transverse(pol, dir geom.Vec) geom.Vec {
	p := r3.Sub(pol, r3.Scale(r3.Dot(pol, dir), dir))
	if r3.Norm(p) < 1e-12 {
		return geom.DefaultFrame(dir).X
	}
	return r3.Unit(p)
}

func vecPtr(v geom.Vec) *geom.Vec {
	return &v
}
