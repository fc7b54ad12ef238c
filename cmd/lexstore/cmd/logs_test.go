package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestLog creates a log file with JSON lines in slog format.
func writeTestLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lexstore.log")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runLogsCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := newLogsCmd()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func TestLogsCmd_HasFlags(t *testing.T) {
	cmd := newLogsCmd()

	follow := cmd.Flags().Lookup("follow")
	require.NotNil(t, follow)
	assert.Equal(t, "f", follow.Shorthand)
	assert.Equal(t, "false", follow.DefValue)

	lines := cmd.Flags().Lookup("lines")
	require.NotNil(t, lines)
	assert.Equal(t, "n", lines.Shorthand)
	assert.Equal(t, "50", lines.DefValue)

	for _, name := range []string{"level", "filter", "no-color", "file"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s should exist", name)
	}
}

func TestLogsCmd_TailsFile(t *testing.T) {
	// Given: a log file with three entries
	path := writeTestLog(t,
		`{"time":"2024-06-01T10:00:00.000Z","level":"INFO","msg":"server starting"}`,
		`{"time":"2024-06-01T10:00:01.000Z","level":"INFO","msg":"cache loaded"}`,
		`{"time":"2024-06-01T10:00:02.000Z","level":"INFO","msg":"upload complete"}`,
	)

	// When: tailing the last two lines
	stdout, stderr, err := runLogsCmd(t, "--file", path, "-n", "2", "--no-color")

	// Then: only the last two entries appear on stdout
	require.NoError(t, err)
	assert.NotContains(t, stdout, "server starting")
	assert.Contains(t, stdout, "cache loaded")
	assert.Contains(t, stdout, "upload complete")

	// And: the header goes to stderr, not stdout
	assert.Contains(t, stderr, "Log file:")
	assert.NotContains(t, stdout, "Log file:")
}

func TestLogsCmd_LevelFilter(t *testing.T) {
	path := writeTestLog(t,
		`{"time":"2024-06-01T10:00:00.000Z","level":"DEBUG","msg":"retry scheduled"}`,
		`{"time":"2024-06-01T10:00:01.000Z","level":"INFO","msg":"store synced"}`,
		`{"time":"2024-06-01T10:00:02.000Z","level":"ERROR","msg":"query failed"}`,
	)

	stdout, _, err := runLogsCmd(t, "--file", path, "--level", "error", "--no-color")

	require.NoError(t, err)
	assert.NotContains(t, stdout, "retry scheduled")
	assert.NotContains(t, stdout, "store synced")
	assert.Contains(t, stdout, "query failed")
}

func TestLogsCmd_PatternFilter(t *testing.T) {
	path := writeTestLog(t,
		`{"time":"2024-06-01T10:00:00.000Z","level":"INFO","msg":"upload started","store":"contratti-2024"}`,
		`{"time":"2024-06-01T10:00:01.000Z","level":"INFO","msg":"query answered"}`,
	)

	stdout, _, err := runLogsCmd(t, "--file", path, "--filter", "upload", "--no-color")

	require.NoError(t, err)
	assert.Contains(t, stdout, "upload started")
	assert.NotContains(t, stdout, "query answered")
}

func TestLogsCmd_UnparseableLinesPassThrough(t *testing.T) {
	// Non-JSON lines are printed raw instead of being dropped
	path := writeTestLog(t,
		`plain text line from a panic`,
		`{"time":"2024-06-01T10:00:01.000Z","level":"INFO","msg":"recovered"}`,
	)

	stdout, _, err := runLogsCmd(t, "--file", path, "--no-color")

	require.NoError(t, err)
	assert.Contains(t, stdout, "plain text line from a panic")
	assert.Contains(t, stdout, "recovered")
}

func TestLogsCmd_InvalidFilterPattern(t *testing.T) {
	path := writeTestLog(t,
		`{"time":"2024-06-01T10:00:00.000Z","level":"INFO","msg":"ok"}`,
	)

	_, _, err := runLogsCmd(t, "--file", path, "--filter", "[invalid")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestLogsCmd_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.log")

	_, _, err := runLogsCmd(t, "--file", missing)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "log file not found")
}
