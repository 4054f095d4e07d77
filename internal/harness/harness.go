package harness

import (
	"bytes"
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tangle/internal/config"
	"github.com/roach88/tangle/internal/geom"
	"github.com/roach88/tangle/internal/record"
	"github.com/roach88/tangle/internal/runner"
	"github.com/roach88/tangle/internal/step"
	"github.com/roach88/tangle/internal/store"
	"github.com/roach88/tangle/internal/testutil"
	"github.com/roach88/tangle/internal/transport"
)

// scenarioRunID is the run id every scenario runs under.
const scenarioRunID = 0

// scenarioUID is the fixed run uid stored for every scenario.
const scenarioUID = "00000000-0000-7000-8000-000000000000"

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Resolve the run configuration
// 2. Build the step events
// 3. Run them through the runner into the store and a CSV buffer
// 4. Read records and the run total back from the store
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	cfg, err := scenario.RunConfig()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	uids := testutil.NewFixedUIDs(scenarioUID)
	if err := st.BeginRun(ctx, scenarioRunID, uids.Generate(), cfg); err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}

	var csvBuf bytes.Buffer
	csvSink := record.NewCSVSink(&csvBuf, cfg.Elements)

	src := transport.NewSlice(scenario.StepEvents())
	_, err = runner.Run(ctx, cfg, src,
		record.MultiSink{st, csvSink},
		record.MultiReporter{st, csvSink},
		runner.WithRunID(scenarioRunID),
		runner.WithWorkers(cfg.Workers),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	result.CSV = csvBuf.Bytes()

	run, err := st.ReadRun(ctx, scenarioRunID)
	if err != nil {
		return nil, err
	}
	result.Summary = run.Summary
	if !run.Reported {
		result.AddError("run total was never reported")
	}

	result.Records, err = st.ReadRecords(ctx, scenarioRunID)
	if err != nil {
		return nil, err
	}

	tol := scenario.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, tol) {
		result.AddError(errMsg)
	}

	return result, nil
}

// RunConfig resolves the run configuration of the scenario. The worker
// count is the scenario's, or 1.
func (s *Scenario) RunConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if s.ConfigFile != "" {
		cfg, err = config.Load(s.ConfigFile)
	} else {
		var data []byte
		data, err = yaml.Marshal(s.Config)
		if err != nil {
			return config.Config{}, fmt.Errorf("scenario %s: encode config: %w", s.Name, err)
		}
		cfg, err = config.Parse(data)
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	cfg.Workers = 1
	if s.Workers > 0 {
		cfg.Workers = s.Workers
	}
	return cfg, nil
}

// StepEvents converts the scenario's events to step events.
func (s *Scenario) StepEvents() []step.Event {
	events := make([]step.Event, len(s.Events))
	for i, ev := range s.Events {
		steps := make([]step.Record, len(ev.Steps))
		for j, sp := range ev.Steps {
			steps[j] = sp.Record()
		}
		events[i] = step.Event{ID: ev.ID, Steps: steps}
	}
	return events
}

// Record builds the step record described by sp.
func (sp StepSpec) Record() step.Record {
	rec := step.Record{
		TrackID:       sp.Track,
		StepNo:        sp.Step,
		Particle:      sp.Particle,
		Process:       sp.Process,
		EnergyDeposit: sp.Edep,
	}
	if rec.Particle == "" {
		rec.Particle = step.Gamma
	}

	switch {
	case sp.Crystal != nil:
		rec.Volume = step.InCrystal(*sp.Crystal)
	case sp.Collimator != nil:
		rec.Volume = step.Volume{Kind: step.Collimator, Copy: *sp.Collimator}
	}

	pre := vec(sp.Pre)
	post := pre
	switch {
	case sp.Post != nil:
		post = vec(sp.Post)
	case sp.Theta != nil:
		post = geom.DefaultFrame(pre).Direction(*sp.Theta, *sp.Phi)
	}
	rec.Pre.Direction = pre
	rec.Post.Direction = post
	rec.Post.Position = vec(sp.Pos)

	if sp.PrePol != nil {
		pp, qp := vec(sp.PrePol), vec(sp.PostPol)
		rec.Pre.Polarization = &pp
		rec.Post.Polarization = &qp
	}
	return rec
}

func vec(c []float64) geom.Vec {
	if len(c) != 3 {
		return geom.Vec{}
	}
	return geom.Vec{X: c[0], Y: c[1], Z: c[2]}
}
