package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tangle/internal/harness"
)

const oneSidedScenario = `
name: one_sided
config:
  elements: 4
events:
  - id: 3
    steps:
      - { track: 1, step: 1, process: compt, crystal: 1, pre: [1, 0, 0], theta: 30, phi: 10, edep: 0.2 }
assertions:
  - type: record_count
    count: %d
`

func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		writeFile(t, dir, name, content)
	}
	return dir
}

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommand_Pass(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"one_sided.yaml": fmtScenario(0),
	})

	out, err := runTestCommand(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ one_sided")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_Fail(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"one_sided.yaml": fmtScenario(1),
	})

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ one_sided")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestTestCommand_JSON(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"a.yaml": fmtScenario(0),
		"b.yaml": fmtScenario(1),
	})

	out, err := runTestCommand(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string              `json:"status"`
		Data   harness.SuiteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestTestCommand_FilterAndUpdate(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"keep.yaml": fmtScenario(0),
		"skip.yaml": fmtScenario(1),
	})

	out, err := runTestCommand(t, "text", dir, "--filter", "keep", "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "keep.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), "#,RunId,nEventsPh")

	// The golden file now pins the output.
	out, err = runTestCommand(t, "text", dir, "--filter", "keep")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed")
}

func TestTestCommand_ScenarioTestdata(t *testing.T) {
	out, err := runTestCommand(t, "text", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ reference")
	assert.Contains(t, out, "0 failed")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := runTestCommand(t, "text", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func fmtScenario(count int) string {
	return fmt.Sprintf(oneSidedScenario, count)
}
