package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tangle/internal/store"
)

func TestOutputFormatter_JSONSuccessIndented(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(ReconstructResult{RunID: 3, Events: 10, Total: 4, Emitted: 2, Workers: 2})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "{\n  \"status\": \"ok\",\n  \"data\": {\n    \"run_id\": 3,"), out)
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.NotContains(t, out, `"error"`)

	var resp struct {
		Status string            `json:"status"`
		Data   ReconstructResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(4), resp.Data.Total)
	assert.Equal(t, int64(2), resp.Data.Emitted)
}

func TestOutputFormatter_JSONErrorCodes(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
	}{
		{"invalid config", ErrCodeInvalidConfig, "invalid config: elements: 7 is not even"},
		{"store", ErrCodeStore, "begin run 5: " + store.ErrRunExists.Error()},
		{"run not found", ErrCodeRunNotFound, "read run 9: " + store.ErrRunNotFound.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			require.NoError(t, formatter.Error(tt.code, tt.message, nil))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
			assert.Nil(t, resp.Error.Details)
		})
	}
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]int{"run": 5}
	err := formatter.Error(ErrCodeStore, "run already recorded", details)
	require.NoError(t, err)

	var resp struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]int `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "E020", resp.Error.Code)
	assert.Equal(t, map[string]int{"run": 5}, resp.Error.Details)
}

func TestOutputFormatter_TextSuccessUsesStringer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success(GenerateResult{Events: 25, Seed: 3, Output: "steps.jsonl"})
	require.NoError(t, err)
	assert.Equal(t, "Wrote 25 events (seed 3) to steps.jsonl\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	details := map[string]string{"file": "ring.yaml"}
	err := formatter.Error(ErrCodeInvalidConfig, "invalid config", details)
	require.NoError(t, err)
	assert.Equal(t, "Error [E010]: invalid config\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"file": "ring.yaml"}
	err := formatter.Error(ErrCodeRunNotFound, "run 9 not found", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E021]: run 9 not found")
	assert.Contains(t, buf.String(), "Details: map[file:ring.yaml]")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		verbose bool
		wantOut string
		wantErr string
	}{
		{"text verbose", "text", true, "", "Reconstructing steps.jsonl\n"},
		{"text quiet", "text", false, "", ""},
		{"json verbose keeps stdout clean", "json", true, "", "Reconstructing steps.jsonl\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    tt.format,
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Reconstructing %s", "steps.jsonl")

			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, tt.wantErr, errOut.String())
		})
	}
}

func TestOutputFormatter_VerboseLogFallsBackToWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	formatter.VerboseLog("Loading %s", "ring.yaml")
	assert.Equal(t, "Loading ring.yaml\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "no such file")))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))

	wrapped := WrapExitError(ExitCommandError, "run 5 already in database", store.ErrRunExists)
	assert.ErrorIs(t, wrapped, store.ErrRunExists)
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "run 5 already in database: run already recorded", wrapped.Error())
}
