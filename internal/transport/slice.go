package transport

import (
	"io"

	"github.com/roach88/tangle/internal/step"
)

// Slice replays a fixed list of events.
type Slice struct {
	events []step.Event
	next   int
}

// NewSlice returns a source over events. The slice is not copied.
func NewSlice(events []step.Event) *Slice {
	return &Slice{events: events}
}

// Next returns the next event, or io.EOF once all have been returned.
func (s *Slice) Next() (step.Event, error) {
	if s.next >= len(s.events) {
		return step.Event{}, io.EOF
	}
	ev := s.events[s.next]
	s.next++
	return ev, nil
}
