// Package harness provides scenario-based conformance testing for the
// reconstruction engine.
//
// A scenario is a hand-written step stream plus the records and run totals
// the engine must produce for it. Scenarios run through the real runner,
// so they exercise the worker pool, the store and the CSV sink as well as
// the engine.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario checks"
//	config:
//	  elements: 4
//	  energy_threshold_kev: 0
//	events:
//	  - id: 1
//	    steps:
//	      - { track: 1, step: 1, process: compt, crystal: 1,
//	          pre: [1, 0, 0], theta: 30, phi: 10, pos: [49, 0, 0], edep: 0.2 }
//	assertions:
//	  - type: record
//	    event: 1
//	    expect: { theta1_a: 30, phi1_a: 10 }
//	  - type: run_total
//	    expect: { total: 1 }
//
// config_file may name a configuration YAML instead of inline config.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - record_count: exactly N records were emitted
//   - record: the record of an event has the listed observables
//   - no_record: an event produced no record
//   - run_total: the reported run summary has the listed counters
//   - category: a scatter-order pairing was counted N times
//
// # Deterministic Testing
//
// Scenarios run with one worker unless they ask for more, under run id 0
// with a fixed run uid, in an in-memory SQLite database. Records are read
// back ordered by event id, so results do not depend on worker count.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/reference.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
