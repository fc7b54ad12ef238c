package cmd

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiolex/lexstore/internal/config"
)

// testServeConfig returns a config whose writable paths all live under a
// temp directory so tests never touch the real home directory.
func testServeConfig(t *testing.T) *config.Config {
	t.Helper()
	tmp := t.TempDir()
	cfg := config.NewConfig()
	cfg.Remote.APIKey = "lxs_test_key"
	cfg.Cache.Path = filepath.Join(tmp, "stores.json")
	cfg.History.Path = filepath.Join(tmp, "history.db")
	return cfg
}

func TestServeCmd_HasLogLevelFlag(t *testing.T) {
	cmd := newServeCmd()

	flag := cmd.Flags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestBuildServer_WiresAllDependencies(t *testing.T) {
	// Given: a default config rooted in a temp directory
	cfg := testServeConfig(t)

	// When: assembling the server
	srv, closeDeps, err := buildServer(cfg, slog.New(slog.DiscardHandler))

	// Then: the server builds and its resources can be released
	require.NoError(t, err)
	require.NotNil(t, srv)
	require.NotNil(t, closeDeps)
	closeDeps()
}

func TestBuildServer_HistoryDisabled(t *testing.T) {
	cfg := testServeConfig(t)
	cfg.History.Enabled = false

	srv, closeDeps, err := buildServer(cfg, slog.New(slog.DiscardHandler))

	require.NoError(t, err)
	require.NotNil(t, srv)
	closeDeps()
}

func TestBuildServer_HistoryOpenFailureIsNotFatal(t *testing.T) {
	// Given: a history path that is a directory, so the database cannot open
	cfg := testServeConfig(t)
	cfg.History.Path = t.TempDir()

	// When/Then: the server still builds, history is just disabled
	srv, closeDeps, err := buildServer(cfg, slog.New(slog.DiscardHandler))

	require.NoError(t, err)
	require.NotNil(t, srv)
	closeDeps()
}

func TestBuildServer_QueryCacheDisabled(t *testing.T) {
	cfg := testServeConfig(t)
	cfg.Query.CacheEntries = 0

	srv, closeDeps, err := buildServer(cfg, slog.New(slog.DiscardHandler))

	require.NoError(t, err)
	require.NotNil(t, srv)
	closeDeps()
}
