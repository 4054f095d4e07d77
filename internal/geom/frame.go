// Package geom holds the pure vector maths used to reconstruct Compton
// scattering angles: local frames built around a beam direction, polar and
// azimuthal angles in that frame, and the degree wrap used for deltaPhi.
//
// All angles are in degrees. Inputs are expected to be finite unit vectors;
// a zero-length vector is not rejected and yields NaN outputs.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec is the 3-vector used throughout the engine.
type Vec = r3.Vec

var (
	// ZAxis is the global reference axis for building local frames.
	ZAxis = Vec{X: 0, Y: 0, Z: 1}
	// YAxis replaces ZAxis when the beam is (anti)parallel to it.
	YAxis = Vec{X: 0, Y: 1, Z: 0}
)

// parallelTolerance bounds |b x up| below which the beam counts as parallel
// to the reference axis.
const parallelTolerance = 1e-9

const radToDeg = 180 / math.Pi

// Frame is an orthonormal local frame whose Z axis is the beam direction.
type Frame struct {
	X, Y, Z Vec
}

// NewFrame builds the local frame around beam using up as the global
// reference axis: Y = unit(up x beam), X = Y x Z.
//
// If beam is parallel to up, alt is used in place of up.
func NewFrame(beam, up, alt Vec) Frame {
	z := beam
	yRaw := r3.Cross(up, z)
	if r3.Norm(yRaw) < parallelTolerance {
		yRaw = r3.Cross(alt, z)
	}
	y := scaleUnit(yRaw)
	x := r3.Cross(y, z)
	return Frame{X: x, Y: y, Z: z}
}

// DefaultFrame builds the local frame around beam with the global +z axis as
// reference and +y as fallback.
func DefaultFrame(beam Vec) Frame {
	return NewFrame(beam, ZAxis, YAxis)
}

// Project returns the components of v along the frame's X, Y and Z axes.
func (f Frame) Project(v Vec) (x, y, z float64) {
	return r3.Dot(v, f.X), r3.Dot(v, f.Y), r3.Dot(v, f.Z)
}

// Direction returns the unit vector with polar angle theta and azimuth phi
// (degrees) expressed in this frame. It is the inverse of Phi/Theta and is
// used to build synthetic steps.
func (f Frame) Direction(theta, phi float64) Vec {
	st, ct := math.Sincos(theta / radToDeg)
	sp, cp := math.Sincos(phi / radToDeg)
	v := r3.Scale(st*cp, f.X)
	v = r3.Add(v, r3.Scale(st*sp, f.Y))
	return r3.Add(v, r3.Scale(ct, f.Z))
}

// Theta is the polar angle in degrees between the scattered direction and
// the reference direction.
func Theta(scattered, reference Vec) float64 {
	return math.Acos(clampCos(r3.Dot(scattered, reference))) * radToDeg
}

// Phi is the azimuth in degrees of the scattered direction in the default
// frame around beam. The result lies in (-180, 180] and is not wrapped.
func Phi(beam, scattered Vec) float64 {
	return PhiIn(DefaultFrame(beam), scattered)
}

// PhiIn is Phi for an explicit frame.
func PhiIn(f Frame, scattered Vec) float64 {
	x, y, _ := f.Project(scattered)
	return math.Atan2(y, x) * radToDeg
}

// ThetaPhi computes θ against reference and φ in the frame around beam.
// For a first scatter reference and beam are the same vector; for a second
// scatter reference is the direction just before that scatter while beam is
// the track's original direction.
func ThetaPhi(beam, reference, scattered Vec) (theta, phi float64) {
	return Theta(scattered, reference), Phi(beam, scattered)
}

// AngleBetween returns the angle in degrees between two (not necessarily
// unit) vectors.
func AngleBetween(a, b Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	return math.Acos(clampCos(r3.Dot(a, b)/(na*nb))) * radToDeg
}

// Wrap360 maps any finite angle in degrees onto [0, 360).
func Wrap360(deg float64) float64 {
	w := math.Mod(deg, 360)
	if w < 0 {
		w += 360
	}
	// -tiny + 360 rounds to 360
	if w >= 360 {
		w = 0
	}
	return w
}

// scaleUnit normalises v; a zero vector becomes NaN.
func scaleUnit(v Vec) Vec {
	return r3.Scale(1/r3.Norm(v), v)
}

// clampCos keeps rounding noise from pushing a cosine outside [-1, 1].
// NaN passes through.
func clampCos(c float64) float64 {
	switch {
	case c > 1:
		return 1
	case c < -1:
		return -1
	}
	return c
}
