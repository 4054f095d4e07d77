package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where package tests keep the CSV snapshot of each scenario
// in testdata/scenarios. It matches GoldenPath for those files.
const GoldenDir = "testdata/scenarios/golden"

// RunWithGolden executes a scenario and compares its CSV output against a
// golden file. The golden file is stored in GoldenDir/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the CSV doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's CSV output against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, result.CSV)
}
