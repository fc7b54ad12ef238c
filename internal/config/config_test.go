package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)

	// Remote defaults
	assert.Equal(t, "https://lexhub.studiolex.it/api/v1", cfg.Remote.BaseURL)
	assert.Equal(t, "60s", cfg.Remote.Timeout)
	assert.Equal(t, 5, cfg.Remote.BreakerFailures)

	// Retry defaults
	assert.Equal(t, "1s", cfg.Retry.BaseDelay)
	assert.Equal(t, "30s", cfg.Retry.MaxDelay)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, 0.2, cfg.Retry.Jitter)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)

	// Upload defaults
	assert.Equal(t, 4, cfg.Upload.Workers)
	assert.True(t, cfg.Upload.WaitForIndexing)
	assert.Equal(t, "2s", cfg.Upload.PollInterval)

	// Chunking defaults
	assert.Equal(t, 1024, cfg.Chunking.MaxTokens)
	assert.Equal(t, 100, cfg.Chunking.OverlapTokens)

	// Cache and history defaults
	assert.Equal(t, "24h", cfg.Cache.StaleAge)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, 500, cfg.History.MaxEntries)
	assert.Equal(t, 128, cfg.Query.CacheEntries)

	// Server defaults
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, "info", cfg.Server.LogLevel)
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	// Given: a project config file
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir()) // isolate from real user config

	content := `
chunking:
  max_tokens: 512
upload:
  workers: 8
server:
  log_level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lexstore.yaml"), []byte(content), 0644))

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: file values win, untouched fields keep defaults
	assert.Equal(t, 512, cfg.Chunking.MaxTokens)
	assert.Equal(t, 8, cfg.Upload.Workers)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 100, cfg.Chunking.OverlapTokens)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
}

func TestLoad_YmlFallback(t *testing.T) {
	// Given: only a .yml project file
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	content := "upload:\n  workers: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lexstore.yml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Upload.Workers)
}

func TestLoad_UserConfigThenProjectConfig(t *testing.T) {
	// Given: a user config and a project config touching the same field
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	userDir := filepath.Join(xdg, "lexstore")
	require.NoError(t, os.MkdirAll(userDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"),
		[]byte("upload:\n  workers: 2\nquery:\n  cache_entries: 64\n"), 0644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lexstore.yaml"),
		[]byte("upload:\n  workers: 6\n"), 0644))

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: project config beats user config; user config beats defaults
	assert.Equal(t, 6, cfg.Upload.Workers)
	assert.Equal(t, 64, cfg.Query.CacheEntries)
}

func TestLoad_EnvOverridesEverything(t *testing.T) {
	// Given: a project config plus env overrides
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lexstore.yaml"),
		[]byte("upload:\n  workers: 6\nserver:\n  log_level: warn\n"), 0644))

	t.Setenv("LEXSTORE_WORKERS", "3")
	t.Setenv("LEXSTORE_LOG_LEVEL", "error")
	t.Setenv("LEXSTORE_BASE_URL", "https://staging.example.com/v1")

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: env wins over both file layers
	assert.Equal(t, 3, cfg.Upload.Workers)
	assert.Equal(t, "error", cfg.Server.LogLevel)
	assert.Equal(t, "https://staging.example.com/v1", cfg.Remote.BaseURL)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lexstore.yaml"),
		[]byte("upload: [not a mapping"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_InvalidValuesFailValidation(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lexstore.yaml"),
		[]byte("chunking:\n  max_tokens: 99999\n"), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
}

func TestLoadAPIKey_EnvWinsOverDotEnv(t *testing.T) {
	// Given: a .env file and an exported variable
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("LEXSTORE_API_KEY=from-dotenv\n"), 0600))

	t.Setenv("LEXSTORE_API_KEY", "from-env")

	// Then: the exported variable wins
	assert.Equal(t, "from-env", LoadAPIKey(dir))
}

func TestLoadAPIKey_ReadsDotEnv(t *testing.T) {
	// Given: only a .env file
	dir := t.TempDir()
	t.Setenv("LEXSTORE_API_KEY", "") // restore after test
	require.NoError(t, os.Unsetenv("LEXSTORE_API_KEY"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("LEXSTORE_API_KEY=dotenv-key\n"), 0600))

	// Then: the .env value is used
	assert.Equal(t, "dotenv-key", LoadAPIKey(dir))
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "max_tokens below range",
			mutate:  func(c *Config) { c.Chunking.MaxTokens = 100 },
			wantErr: "max_tokens",
		},
		{
			name:    "max_tokens above range",
			mutate:  func(c *Config) { c.Chunking.MaxTokens = 4096 },
			wantErr: "max_tokens",
		},
		{
			name:    "overlap above range",
			mutate:  func(c *Config) { c.Chunking.OverlapTokens = 600 },
			wantErr: "overlap_tokens",
		},
		{
			name: "overlap not below max",
			mutate: func(c *Config) {
				c.Chunking.MaxTokens = 300
				c.Chunking.OverlapTokens = 300
			},
			wantErr: "below max_tokens",
		},
		{
			name:    "workers out of range",
			mutate:  func(c *Config) { c.Upload.Workers = 0 },
			wantErr: "workers",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Retry.MaxAttempts = 0 },
			wantErr: "max_attempts",
		},
		{
			name: "multiplier too small for jitter",
			mutate: func(c *Config) {
				c.Retry.Multiplier = 1.1
				c.Retry.Jitter = 0.4
			},
			wantErr: "too small for jitter",
		},
		{
			name:    "bad transport",
			mutate:  func(c *Config) { c.Server.Transport = "tcp" },
			wantErr: "transport",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	// Given: a customized config
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg := NewConfig()
	cfg.Upload.Workers = 7
	cfg.Metadata.Defaults = map[string]string{"practice": "Rossi-2024"}

	// When: writing and re-loading via the project path
	path := filepath.Join(dir, ".lexstore.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)

	// Then: values survive the round trip
	assert.Equal(t, 7, loaded.Upload.Workers)
	assert.Equal(t, "Rossi-2024", loaded.Metadata.Defaults["practice"])
}

func TestWriteYAML_NeverContainsAPIKey(t *testing.T) {
	// Given: a config holding a resolved credential
	cfg := NewConfig()
	cfg.Remote.APIKey = "super-secret"

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	// Then: the credential never reaches disk
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("not-a-duration", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("-3s", time.Minute))
}

func TestFindProjectRoot_FindsConfigMarker(t *testing.T) {
	// Given: a nested directory with a config at the top
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".lexstore.yaml"), []byte("{}"), 0644))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	// When: searching from the nested dir
	found, err := FindProjectRoot(nested)
	require.NoError(t, err)

	// Then: the marker directory is returned
	resolvedRoot, _ := filepath.EvalSymlinks(root)
	resolvedFound, _ := filepath.EvalSymlinks(found)
	assert.Equal(t, resolvedRoot, resolvedFound)
}

func TestMergeNewDefaults_FillsMissingFields(t *testing.T) {
	// Given: a config from an older version missing newer fields
	cfg := &Config{Version: 1}
	cfg.Chunking = ChunkingConfig{MaxTokens: 1024, OverlapTokens: 100}

	// When: merging new defaults
	added := cfg.MergeNewDefaults()

	// Then: missing fields are filled and reported
	assert.Contains(t, added, "retry.max_attempts")
	assert.Contains(t, added, "query.cache_entries")
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 128, cfg.Query.CacheEntries)
}

func TestDocTypes_ContainsVocabulary(t *testing.T) {
	assert.Contains(t, DocTypes, "Contratto")
	assert.Contains(t, DocTypes, "Sentenza")
	assert.Contains(t, DocTypes, "Altro")
}

func TestBackupUserConfig_NoConfigIsNoop(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := BackupUserConfig()
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupUserConfig_CreatesTimestampedCopy(t *testing.T) {
	// Given: an existing user config
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	userDir := filepath.Join(xdg, "lexstore")
	require.NoError(t, os.MkdirAll(userDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"),
		[]byte("version: 1\n"), 0644))

	// When: backing up
	path, err := BackupUserConfig()
	require.NoError(t, err)

	// Then: the backup exists with the original content
	require.NotEmpty(t, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))

	// And: it shows up in the listing
	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}
