package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedLogFile writes a JSON-lines log file in the shape slog's JSON
// handler produces.
func seedLogFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vigil.log")
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLogsCmd_TailShowsEntries(t *testing.T) {
	// Given: a log file with an info and an error entry
	path := seedLogFile(t,
		`{"time":"2026-08-25T10:00:00.000000000Z","level":"INFO","msg":"session started","root":"/tmp/project"}`,
		`{"time":"2026-08-25T10:00:01.000000000Z","level":"ERROR","msg":"journal write failed","error":"disk full"}`,
	)

	// When: tailing it
	cmd := NewRootCmd()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{"logs", "--file", path, "--no-color"})

	err := cmd.Execute()

	// Then: entries go to stdout and the header stays on stderr
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "session started")
	assert.Contains(t, stdout.String(), "journal write failed")
	assert.NotContains(t, stdout.String(), "Log file:")
	assert.Contains(t, stderr.String(), "Log file: "+path)
	assert.Contains(t, stderr.String(), "---")
}

func TestLogsCmd_LevelFilter(t *testing.T) {
	// Given: a log file with mixed levels
	path := seedLogFile(t,
		`{"time":"2026-08-25T10:00:00.000000000Z","level":"INFO","msg":"session started"}`,
		`{"time":"2026-08-25T10:00:01.000000000Z","level":"ERROR","msg":"journal write failed"}`,
	)

	// When: filtering to errors only
	cmd := NewRootCmd()
	stdout := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"logs", "--file", path, "--level", "error", "--no-color"})

	err := cmd.Execute()

	// Then: info entries should be dropped
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "journal write failed")
	assert.NotContains(t, stdout.String(), "session started")
}

func TestLogsCmd_PatternFilter(t *testing.T) {
	// Given: a log file with distinct messages
	path := seedLogFile(t,
		`{"time":"2026-08-25T10:00:00.000000000Z","level":"INFO","msg":"session started"}`,
		`{"time":"2026-08-25T10:00:01.000000000Z","level":"INFO","msg":"journal enabled"}`,
	)

	// When: filtering by pattern
	cmd := NewRootCmd()
	stdout := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"logs", "--file", path, "--filter", "journal", "--no-color"})

	err := cmd.Execute()

	// Then: only matching lines should remain
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "journal enabled")
	assert.NotContains(t, stdout.String(), "session started")
}

func TestLogsCmd_InvalidPatternFails(t *testing.T) {
	// Given: an unparseable regex
	path := seedLogFile(t,
		`{"time":"2026-08-25T10:00:00.000000000Z","level":"INFO","msg":"session started"}`,
	)

	// When: running with it
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"logs", "--file", path, "--filter", "["})

	err := cmd.Execute()

	// Then: the command should fail with a clear message
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestLogsCmd_LinesLimit(t *testing.T) {
	// Given: more entries than the requested window
	path := seedLogFile(t,
		`{"time":"2026-08-25T10:00:00.000000000Z","level":"INFO","msg":"first"}`,
		`{"time":"2026-08-25T10:00:01.000000000Z","level":"INFO","msg":"second"}`,
		`{"time":"2026-08-25T10:00:02.000000000Z","level":"INFO","msg":"third"}`,
	)

	// When: tailing the last two lines
	cmd := NewRootCmd()
	stdout := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"logs", "--file", path, "-n", "2", "--no-color"})

	err := cmd.Execute()

	// Then: the oldest entry should fall off
	require.NoError(t, err)
	assert.NotContains(t, stdout.String(), "first")
	assert.Contains(t, stdout.String(), "second")
	assert.Contains(t, stdout.String(), "third")
}

func TestLogsCmd_MissingFileFails(t *testing.T) {
	// Given: a log path that does not exist
	missing := filepath.Join(t.TempDir(), "vigil.log")

	// When: tailing it
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"logs", "--file", missing})

	err := cmd.Execute()

	// Then: the error should name the missing file
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log file not found")
}
