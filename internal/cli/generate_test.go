package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tangle/internal/transport"
)

func generateLog(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out := filepath.Join(dir, "steps.jsonl")

	buf := &bytes.Buffer{}
	cmd := NewGenerateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"-o", out}, args...))
	require.NoError(t, cmd.Execute())
	return out
}

func countEvents(t *testing.T, r io.Reader) int {
	t.Helper()
	rd := transport.NewReader(r)
	for {
		_, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return rd.Read()
		}
		require.NoError(t, err)
	}
}

func TestGenerate_WritesEvents(t *testing.T) {
	path := generateLog(t, t.TempDir(), "--events", "25", "--seed", "3")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 25, countEvents(t, f))
}

func TestGenerate_Reproducible(t *testing.T) {
	a := generateLog(t, t.TempDir(), "--events", "10", "--seed", "42")
	b := generateLog(t, t.TempDir(), "--events", "10", "--seed", "42")
	c := generateLog(t, t.TempDir(), "--events", "10", "--seed", "43")

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	dc, err := os.ReadFile(c)
	require.NoError(t, err)

	assert.Equal(t, da, db)
	assert.NotEqual(t, da, dc)
}

func TestGenerate_Stdout(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewGenerateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-o", "-", "--events", "4"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, 4, countEvents(t, buf))
}

func TestGenerate_RequiresOutput(t *testing.T) {
	cmd := NewGenerateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--events", "4"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestGenerate_BadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "bad.yaml", "elements: 7\n")

	cmd := NewGenerateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfg, "-o", filepath.Join(dir, "x.jsonl")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
