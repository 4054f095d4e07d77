package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tangle/internal/config"
	"github.com/roach88/tangle/internal/detector"
	"github.com/roach88/tangle/internal/geom"
	"github.com/roach88/tangle/internal/record"
	"github.com/roach88/tangle/internal/step"
)

// Engine reconstructs coincidence events for one worker.
//
// Thread-safety model:
//   - All callbacks must come from the single goroutine that owns the
//     worker; Engine has no internal locking.
//   - The Sink and RunAggregate passed in may be shared with other engines
//     and must be safe for concurrent use.
type Engine struct {
	cfg       config.Config
	layout    *detector.Layout
	roles     config.TrackRoles
	threshold float64 // MeV
	fastPath  bool

	sink    record.Sink
	agg     *RunAggregate
	metrics *Metrics
	worker  int

	state   EventState
	tally   WorkerTally
	compton int // Compton steps in crystals this event

	runID   int
	inRun   bool
	inEvent bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorker sets the worker index stamped on records and logs.
func WithWorker(id int) Option {
	return func(e *Engine) {
		e.worker = id
	}
}

// WithAggregate sets the run aggregate the worker merges into at EndRun.
// Without one, EndRun only resets the worker tally.
func WithAggregate(a *RunAggregate) Option {
	return func(e *Engine) {
		e.agg = a
	}
}

// WithMetrics attaches shared Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an engine for one worker. sink may be nil, in which case
// records are classified but dropped.
func New(cfg config.Config, sink record.Sink, opts ...Option) (*Engine, error) {
	layout, err := cfg.Layout()
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if sink == nil {
		sink = record.Discard{}
	}

	e := &Engine{
		cfg:       cfg,
		layout:    layout,
		roles:     cfg.Roles(),
		threshold: cfg.ThresholdMeV(),
		fastPath:  cfg.FastPathEnabled(),
		sink:      sink,
		state:     newEventState(layout.Len()),
	}

	for _, opt := range opts {
		opt(e)
	}
	e.tally.Worker = e.worker

	return e, nil
}

// Layout returns the detector layout the engine was built for.
func (e *Engine) Layout() *detector.Layout {
	return e.layout
}

// BeginRun starts a run. Worker counters are zeroed.
func (e *Engine) BeginRun(runID int) error {
	if e.inRun {
		return newLifecycleError(ErrCodeRunActive, "BeginRun", e.worker,
			"run %d still open when run %d began", e.runID, runID)
	}
	e.runID = runID
	e.inRun = true
	e.inEvent = false
	e.tally = WorkerTally{Worker: e.worker}
	e.state.reset(0)

	slog.Debug("worker run begin", "worker", e.worker, "run", runID)
	return nil
}

// BeginEvent resets all per-event state. Calling it again without EndEvent
// discards the open event.
func (e *Engine) BeginEvent(eventID int64) error {
	if !e.inRun {
		return newLifecycleError(ErrCodeNoRun, "BeginEvent", e.worker, "event %d outside a run", eventID)
	}
	if e.inEvent && e.state.Steps > 0 {
		slog.Warn("event discarded without EndEvent",
			"worker", e.worker,
			"event", e.state.EventID,
			"steps", e.state.Steps,
		)
	}
	e.state.reset(eventID)
	e.compton = 0
	e.inEvent = true
	return nil
}

// Step consumes one step record of the current event.
func (e *Engine) Step(rec *step.Record) error {
	if !e.inEvent {
		return newLifecycleError(ErrCodeNoEvent, "Step", e.worker,
			"track %d step %d outside an event", rec.TrackID, rec.StepNo)
	}
	st := &e.state
	st.Steps++

	el := rec.Volume.Element()
	inCrystal := e.layout.Valid(el)

	if rec.EnergyDeposit > 0 {
		switch {
		case inCrystal:
			st.Deposits.Add(el, rec.EnergyDeposit)
		case rec.Volume.Kind == step.Collimator:
			st.Deposits.AddCollimator(rec.Volume.Copy, rec.EnergyDeposit)
		}
	}

	if inCrystal {
		switch rec.Process {
		case step.Compton:
			st.Deposits.Compton[el]++
			e.compton++
		case step.Photoelectric:
			st.Deposits.Photo[el]++
		}
	}

	if !st.Eligible {
		return nil
	}

	if inCrystal && rec.IsPhoton() {
		side := e.layout.SideOf(el)
		switch rec.Process {
		case step.Compton:
			e.scatter(st.Side(side), side, rec)
		case step.Photoelectric:
			absorb(st.Side(side), rec)
		}
	}

	// The second photon must open with a Compton scatter in a crystal for
	// a coincidence to remain possible, whatever the first photon did.
	if e.fastPath && rec.TrackID == e.roles.Secondary && rec.StepNo == 1 &&
		!(inCrystal && rec.IsPhoton() && rec.Process == step.Compton) {
		st.Eligible = false
	}
	return nil
}

// scatter advances one side's state machine on a photon Compton step.
func (e *Engine) scatter(s *SideState, side detector.Side, rec *step.Record) {
	pre, post := rec.Pre.Direction, rec.Post.Direction

	switch {
	case s.Scatters == 0:
		beam := pre
		if e.cfg.FixedAxis {
			beam = e.layout.Axis(side)
		}
		s.Scatters = 1
		s.FirstTrack = rec.TrackID
		s.FirstHit = rec.Post.Position
		s.Beam = beam
		s.Scatter1 = post
		s.Theta1 = geom.Theta(post, pre)
		s.Phi1 = geom.Phi(beam, post)
		if pp, qp, ok := rec.Polarizations(); ok {
			s.Polarization = geom.AngleBetween(pp, qp)
		}

	case rec.TrackID != s.FirstTrack:
		// Another photon reaching an already-claimed side carries no
		// correlation with this side's first scatter.

	case s.Scatters == 1:
		s.Scatters = 2
		s.SecondHit = rec.Post.Position
		s.Scatter2 = post
		s.Theta2 = geom.Theta(post, pre)
		s.Phi2 = geom.Phi(s.Beam, post)

	default:
		s.Scatters++
	}
}

// absorb records the first two photoelectric absorptions on a side.
func absorb(s *SideState, rec *step.Record) {
	switch s.Photos {
	case 0:
		s.FirstPhoto = rec.Post.Position
	case 1:
		s.SecondPhoto = rec.Post.Position
	}
	s.Photos++
}

// EndEvent classifies the current event, emits its record if it passes the
// energy gate, and updates the worker tally.
func (e *Engine) EndEvent(ctx context.Context) error {
	if !e.inEvent {
		return newLifecycleError(ErrCodeNoEvent, "EndEvent", e.worker, "no open event")
	}
	e.inEvent = false
	st := &e.state

	c := Classify(st, e.layout, e.threshold)

	e.tally.Events++
	if c.CentralAbove {
		e.tally.ThresholdEvents++
	}
	for i := range c.Pairs {
		for j := range c.Pairs[i] {
			if c.Pairs[i][j] {
				e.tally.Categories[i][j]++
			}
		}
	}

	outcome := OutcomeNoCoincidence
	switch {
	case c.Qualifying && c.CentralAbove:
		outcome = OutcomeEmitted
	case c.Qualifying:
		outcome = OutcomeBelowThreshold
	}

	e.metrics.observeEvent(st, e.compton)
	e.metrics.observeOutcome(outcome, c.CentralAbove, c.Pairs)

	slog.Debug("event classified",
		"worker", e.worker,
		"event", st.EventID,
		"scatters_a", st.Sides[detector.SideA].Scatters,
		"scatters_b", st.Sides[detector.SideB].Scatters,
		"eligible", st.Eligible,
		"outcome", outcome,
	)

	if outcome != OutcomeEmitted {
		return nil
	}

	rec := c.Record(st, e.runID, e.worker)
	if err := e.sink.Emit(ctx, rec); err != nil {
		return fmt.Errorf("emit event %d: %w", st.EventID, err)
	}
	e.tally.Emitted++
	return nil
}

// EndRun closes the run and merges the worker tally into the aggregate.
// An event left open is discarded.
func (e *Engine) EndRun(runID int) error {
	if !e.inRun {
		return newLifecycleError(ErrCodeNoRun, "EndRun", e.worker, "run %d never began", runID)
	}
	if runID != e.runID {
		return newLifecycleError(ErrCodeRunMismatch, "EndRun", e.worker,
			"ending run %d but run %d is open", runID, e.runID)
	}
	if e.inEvent {
		slog.Warn("event discarded at end of run", "worker", e.worker, "event", e.state.EventID)
		e.inEvent = false
	}

	slog.Info("worker run end",
		"worker", e.worker,
		"run", runID,
		"events", e.tally.Events,
		"threshold_events", e.tally.ThresholdEvents,
		"records", e.tally.Emitted,
	)

	if e.agg != nil {
		e.agg.Merge(e.tally)
	}
	e.state.reset(0)
	e.inRun = false
	return nil
}

// Tally returns the worker's counters for the current run.
func (e *Engine) Tally() WorkerTally {
	return e.tally
}

// State returns a deep copy of the current event state.
func (e *Engine) State() EventState {
	return e.state.clone()
}
