package testutil

import "sync"

// Sequence hands out monotonically increasing event ids for tests.
//
// Thread-safety: all methods are safe for concurrent use.
type Sequence struct {
	mu   sync.Mutex
	next int64
}

// NewSequence creates a sequence whose first Next returns start.
func NewSequence(start int64) *Sequence {
	return &Sequence{next: start}
}

// Next returns the current id and advances.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	return id
}

// FixedUIDs returns predetermined run UIDs in order, so that stored runs
// compare byte-for-byte across test executions.
//
// Thread-safety: safe for concurrent use.
type FixedUIDs struct {
	mu   sync.Mutex
	uids []string
	idx  int
}

// NewFixedUIDs creates a generator that returns uids in order.
func NewFixedUIDs(uids ...string) *FixedUIDs {
	return &FixedUIDs{uids: uids}
}

// Generate returns the next UID. It panics when the list is exhausted, which
// means the test started more runs than it declared.
func (g *FixedUIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.uids) {
		panic("FixedUIDs: all uids exhausted")
	}
	uid := g.uids[g.idx]
	g.idx++
	return uid
}
