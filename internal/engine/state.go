package engine

import (
	"fmt"

	"github.com/roach88/tangle/internal/detector"
	"github.com/roach88/tangle/internal/geom"
	"github.com/roach88/tangle/internal/record"
)

// ScatterPhase is the position of a side in the scatter state machine.
type ScatterPhase int

const (
	NoScatter ScatterPhase = iota
	FirstScatter
	SecondScatter
	Saturated
)

func (p ScatterPhase) String() string {
	switch p {
	case NoScatter:
		return "NoScatter"
	case FirstScatter:
		return "FirstScatter"
	case SecondScatter:
		return "SecondScatter"
	case Saturated:
		return "Saturated"
	default:
		return fmt.Sprintf("ScatterPhase(%d)", int(p))
	}
}

// SideState is the reconstruction state of one detector side.
type SideState struct {
	// Scatters counts Compton steps attributed to this side: 0, 1, 2 or more.
	Scatters int
	// FirstTrack is the track that produced the first scatter.
	FirstTrack int

	FirstHit  geom.Vec
	SecondHit geom.Vec

	// Photos counts photoelectric absorptions on this side.
	Photos      int
	FirstPhoto  geom.Vec
	SecondPhoto geom.Vec

	// Beam is the φ frame axis fixed at the first scatter.
	Beam     geom.Vec
	Scatter1 geom.Vec
	Scatter2 geom.Vec

	Theta1, Phi1 float64
	Theta2, Phi2 float64

	// Polarization is the pre/post polarization angle at the first scatter.
	Polarization float64
}

// Phase derives the state-machine phase from the scatter count.
func (s *SideState) Phase() ScatterPhase {
	switch {
	case s.Scatters <= 0:
		return NoScatter
	case s.Scatters == 1:
		return FirstScatter
	case s.Scatters == 2:
		return SecondScatter
	default:
		return Saturated
	}
}

func (s *SideState) reset() {
	*s = SideState{
		FirstHit:     record.AbsentPosition,
		SecondHit:    record.AbsentPosition,
		FirstPhoto:   record.AbsentPosition,
		SecondPhoto:  record.AbsentPosition,
		Theta1:       record.AbsentAngle,
		Phi1:         record.AbsentAngle,
		Theta2:       record.AbsentAngle,
		Phi2:         record.AbsentAngle,
		Polarization: record.AbsentAngle,
	}
}

// phi returns the azimuth of the given scatter order (0 = first).
func (s *SideState) phi(order int) float64 {
	if order == 0 {
		return s.Phi1
	}
	return s.Phi2
}

// EventState is everything the engine knows about the current event.
type EventState struct {
	EventID  int64
	Deposits Deposits
	Sides    [detector.NumSides]SideState
	// Eligible is cleared by the second-photon short-circuit; once false no
	// angle state changes for the rest of the event.
	Eligible bool
	// Steps counts step records seen in this event.
	Steps int
}

func newEventState(n int) EventState {
	s := EventState{Deposits: newDeposits(n)}
	s.reset(0)
	return s
}

func (s *EventState) reset(eventID int64) {
	s.EventID = eventID
	s.Deposits.Reset()
	for i := range s.Sides {
		s.Sides[i].reset()
	}
	s.Eligible = true
	s.Steps = 0
}

// TotalScatters is the Compton count summed over both sides.
func (s *EventState) TotalScatters() int {
	return s.Sides[detector.SideA].Scatters + s.Sides[detector.SideB].Scatters
}

// Side returns the state of one side.
func (s *EventState) Side(side detector.Side) *SideState {
	return &s.Sides[side]
}

func (s *EventState) clone() EventState {
	c := *s
	c.Deposits = s.Deposits.clone()
	return c
}
