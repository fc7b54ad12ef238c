package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiolex/lexstore/pkg/version"
)

func runVersionCmd(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestVersionCmd_Default(t *testing.T) {
	output := runVersionCmd(t)

	assert.Contains(t, output, "lexstore")
	assert.Contains(t, output, version.Version)
	assert.Contains(t, output, "commit:")
	assert.Contains(t, output, "go:")
}

func TestVersionCmd_Short(t *testing.T) {
	output := runVersionCmd(t, "--short")

	assert.Equal(t, version.Version, strings.TrimSpace(output))
}

func TestVersionCmd_ShortTakesPrecedenceOverJSON(t *testing.T) {
	output := runVersionCmd(t, "--short", "--json")

	assert.Equal(t, version.Version, strings.TrimSpace(output))
}

func TestVersionCmd_JSON(t *testing.T) {
	output := runVersionCmd(t, "--json")

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
}
