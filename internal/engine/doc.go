// Package engine implements the coincidence reconstruction engine.
//
// One Engine belongs to one worker. The transport collaborator drives it
// through a strictly sequential callback stream:
//
//	BeginRun → { BeginEvent → Step* → EndEvent }* → EndRun
//
// and the engine never sees two events interleaved on the same worker.
//
// ARCHITECTURE:
//
// Per-worker state:
// All per-event state (EventState: crystal deposits, Compton and
// photoelectric tallies, the scatter state of each detector side) and the
// per-run WorkerTally are owned by the Engine and touched only by the
// worker goroutine that drives it. No locks are taken on the step path.
//
// Side state machine:
// Each side moves NoScatter → FirstScatter → SecondScatter → Saturated on
// photon Compton steps inside a crystal of that side. The first scatter fixes
// the side's track and beam axis; only the same track can add a second
// scatter; further scatters change nothing but the count.
//
// Shared state:
// RunAggregate is the only structure shared across workers. Each worker
// merges its tally under the aggregate's mutex at EndRun; the primary
// reports the total once all workers are done.
//
// INVARIANTS:
//   - Side assignment comes from the static crystal-index partition, never
//     from track identity.
//   - EventState is fully reset by BeginEvent and fully classified by
//     EndEvent before the next event begins.
//   - A Sink sees at most one record per event.
package engine
