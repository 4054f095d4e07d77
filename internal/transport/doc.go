// Package transport stands in for the particle-transport collaborator.
//
// It delivers step.Event values to the runner from one of two places: a
// JSON-lines step log (one event per line) written by an external
// simulation, or a seeded synthetic generator that produces plausible
// Compton kinematics for demos and load tests. It performs no interaction
// physics beyond the Compton energy relation.
package transport

import "github.com/roach88/tangle/internal/step"

// Source yields events in order. Next returns io.EOF after the last event.
type Source interface {
	Next() (step.Event, error)
}
