package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tangle/internal/store"
	"github.com/roach88/tangle/internal/testutil"
	"github.com/roach88/tangle/internal/transport"
)

// writeReferenceLog writes n copies of the reference coincidence event.
func writeReferenceLog(t *testing.T, dir string, n int) string {
	t.Helper()
	path := filepath.Join(dir, "ref.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := transport.NewWriter(f)
	ids := testutil.NewSequence(0)
	for i := 0; i < n; i++ {
		require.NoError(t, w.Write(testutil.CoincidenceEvent(ids.Next())))
	}
	return path
}

type reconstructResponse struct {
	Status string            `json:"status"`
	Data   ReconstructResult `json:"data"`
}

func reconstruct(t *testing.T, args ...string) reconstructResponse {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewReconstructCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())

	var resp reconstructResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	return resp
}

func TestReconstruct_ReferenceEventsToStoreAndCSV(t *testing.T) {
	dir := t.TempDir()
	log := writeReferenceLog(t, dir, 3)
	db := filepath.Join(dir, "tangle.db")
	csvPath := filepath.Join(dir, "out.csv")

	resp := reconstruct(t, "--db", db, "--csv", csvPath, "--workers", "2", log)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.RunID)
	assert.Equal(t, int64(3), resp.Data.Events)
	assert.Equal(t, int64(3), resp.Data.Total)
	assert.Equal(t, int64(3), resp.Data.Emitted)
	assert.Equal(t, 2, resp.Data.Workers)
	assert.Equal(t, int64(3), resp.Data.Categories[0][0])
	assert.Len(t, resp.Data.UID, 36)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	dphi, err := st.DeltaPhis(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, dphi, 3)
	for _, v := range dphi {
		assert.InDelta(t, 350, v, 1e-9)
	}

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "run,event,worker,crystal0"))
	assert.Equal(t, "#,RunId,nEventsPh", lines[4])
	assert.Equal(t, "#,0,3", lines[5])
}

func TestReconstruct_NextRunID(t *testing.T) {
	dir := t.TempDir()
	log := writeReferenceLog(t, dir, 1)
	db := filepath.Join(dir, "tangle.db")

	first := reconstruct(t, "--db", db, "--workers", "1", log)
	second := reconstruct(t, "--db", db, "--workers", "1", log)
	assert.Equal(t, 0, first.Data.RunID)
	assert.Equal(t, 1, second.Data.RunID)
}

func TestReconstruct_ExplicitRunIDConflict(t *testing.T) {
	dir := t.TempDir()
	log := writeReferenceLog(t, dir, 1)
	db := filepath.Join(dir, "tangle.db")

	reconstruct(t, "--db", db, "--run", "5", "--workers", "1", log)

	cmd := NewReconstructCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", db, "--run", "5", log})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrRunExists)
}

func TestReconstruct_FixedUID(t *testing.T) {
	dir := t.TempDir()
	log := writeReferenceLog(t, dir, 1)
	db := filepath.Join(dir, "tangle.db")

	buf := &bytes.Buffer{}
	opts := &ReconstructOptions{
		RootOptions:  &RootOptions{Format: "json"},
		Database:     db,
		Workers:      1,
		UIDGenerator: testutil.NewFixedUIDs("run-uid-1"),
	}
	cmd := NewReconstructCommand(opts.RootOptions)
	cmd.SetOut(buf)
	require.NoError(t, runReconstruct(opts, log, cmd))

	var resp reconstructResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "run-uid-1", resp.Data.UID)
}

func TestReconstruct_Stdin(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(writeReferenceLog(t, dir, 2))
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	cmd := NewReconstructCommand(&RootOptions{Format: "json"})
	cmd.SetIn(bytes.NewReader(data))
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--workers", "1", "-"})
	require.NoError(t, cmd.Execute())

	var resp reconstructResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Data.Emitted)
	assert.Empty(t, resp.Data.UID)
}

func TestReconstruct_GeneratedLog(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "ring.yaml", "energy_threshold_kev: 5\nworkers: 3\n")
	log := generateLog(t, dir, "--events", "300", "--seed", "11", "--config", cfg)
	db := filepath.Join(dir, "tangle.db")

	resp := reconstruct(t, "--config", cfg, "--db", db, log)
	assert.Equal(t, int64(300), resp.Data.Events)
	assert.Equal(t, 3, resp.Data.Workers)
	assert.LessOrEqual(t, resp.Data.Emitted, resp.Data.Total)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.ReadRun(context.Background(), resp.Data.RunID)
	require.NoError(t, err)
	assert.True(t, run.Reported)
	assert.Equal(t, resp.Data.Total, run.Summary.Total)
	recs, err := st.ReadRecords(context.Background(), resp.Data.RunID)
	require.NoError(t, err)
	assert.Len(t, recs, int(resp.Data.Emitted))
}

func TestReconstruct_MissingInput(t *testing.T) {
	cmd := NewReconstructCommand(&RootOptions{Format: "text"})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.jsonl")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E005]")
}

func TestReconstruct_MalformedLog(t *testing.T) {
	dir := t.TempDir()
	log := writeFile(t, dir, "bad.jsonl", "{\"event\": 1, \"steps\": [\n")

	cmd := NewReconstructCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--workers", "1", log})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
