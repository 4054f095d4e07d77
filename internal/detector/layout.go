// Package detector describes the static crystal ring: how many crystals
// there are, which half of the ring ("side") each belongs to, which crystal
// sits on the beam line of each side, and where each crystal is.
package detector

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Side identifies one half of the ring.
type Side int

const (
	// SideA is the half holding the first N/2 crystals (the +x arm).
	SideA Side = iota
	// SideB is the half holding the last N/2 crystals (the -x arm).
	SideB
)

// NumSides is the number of detector halves.
const NumSides = 2

// Sides lists both halves in index order.
var Sides = [NumSides]Side{SideA, SideB}

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Other returns the opposite half.
func (s Side) Other() Side {
	return 1 - s
}

// DefaultElements is the crystal count of the reference ring (two 3x3 arrays).
const DefaultElements = 18

// Reference crystal dimensions in mm.
const (
	CrystalDX   = 22.0
	CrystalDY   = 4.0
	CrystalDZ   = 3.0
	WorldSizeX  = 120.0
	armDistance = 0.5 * (WorldSizeX - CrystalDX)
)

// Layout is the static partition of crystal indices into sides.
type Layout struct {
	n       int
	central [NumSides]int
}

// NewLayout builds a layout of n crystals. n must be even and at least 2.
// The central crystal of each side defaults to the middle of that half.
func NewLayout(n int) (*Layout, error) {
	if n < 2 || n%2 != 0 {
		return nil, fmt.Errorf("detector: element count must be an even number >= 2, got %d", n)
	}
	half := n / 2
	return &Layout{
		n:       n,
		central: [NumSides]int{half / 2, half + half/2},
	}, nil
}

// MustLayout is NewLayout that panics on error. Intended for tests and
// package-level defaults.
func MustLayout(n int) *Layout {
	l, err := NewLayout(n)
	if err != nil {
		panic(err)
	}
	return l
}

// WithCentral returns a copy of the layout with explicit central crystals.
func (l *Layout) WithCentral(a, b int) (*Layout, error) {
	if l.SideOf(a) != SideA || !l.Valid(a) {
		return nil, fmt.Errorf("detector: central crystal %d is not on side A", a)
	}
	if l.SideOf(b) != SideB || !l.Valid(b) {
		return nil, fmt.Errorf("detector: central crystal %d is not on side B", b)
	}
	c := *l
	c.central = [NumSides]int{a, b}
	return &c, nil
}

// Len returns the number of crystals.
func (l *Layout) Len() int { return l.n }

// Valid reports whether idx names a crystal.
func (l *Layout) Valid(idx int) bool {
	return idx >= 0 && idx < l.n
}

// SideOf returns the half a crystal belongs to. The result is meaningless
// for invalid indices; check Valid first.
func (l *Layout) SideOf(idx int) Side {
	if idx < l.n/2 {
		return SideA
	}
	return SideB
}

// Central returns the crystal on the beam line of a side.
func (l *Layout) Central(s Side) int {
	return l.central[s]
}

// Axis is the nominal direction of the photon travelling toward a side.
func (l *Layout) Axis(s Side) r3.Vec {
	if s == SideA {
		return r3.Vec{X: 1}
	}
	return r3.Vec{X: -1}
}

// Position returns the centre of a crystal in mm. The reference ring is two
// 3x3 arrays facing each other along x; other sizes are laid out as a single
// row per side along y.
func (l *Layout) Position(idx int) r3.Vec {
	x := armDistance
	if l.SideOf(idx) == SideB {
		x = -armDistance
	}
	local := idx % (l.n / 2)
	if l.n == DefaultElements {
		row, col := local/3, local%3
		return r3.Vec{X: x, Y: float64(col-1) * CrystalDY, Z: float64(1-row) * CrystalDZ}
	}
	mid := float64(l.n/2-1) / 2
	return r3.Vec{X: x, Y: (float64(local) - mid) * CrystalDY}
}
