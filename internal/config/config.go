package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete lexstore configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Remote   RemoteConfig   `yaml:"remote" json:"remote"`
	Retry    RetryConfig    `yaml:"retry" json:"retry"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Upload   UploadConfig   `yaml:"upload" json:"upload"`
	Chunking ChunkingConfig `yaml:"chunking" json:"chunking"`
	Metadata MetadataConfig `yaml:"metadata" json:"metadata"`
	Query    QueryConfig    `yaml:"query" json:"query"`
	History  HistoryConfig  `yaml:"history" json:"history"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// RemoteConfig configures the connection to the indexing service.
// The API key is never read from or written to YAML; it comes from the
// LEXSTORE_API_KEY environment variable (optionally via a .env file).
type RemoteConfig struct {
	// BaseURL is the indexing service endpoint.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Timeout is the per-request timeout (e.g., "60s").
	Timeout string `yaml:"timeout" json:"timeout"`

	// APIKey is the opaque credential, supplied via environment only.
	APIKey string `yaml:"-" json:"-"`

	// BreakerFailures is the consecutive-failure count that opens the
	// circuit toward the remote. Zero disables the breaker.
	BreakerFailures int `yaml:"breaker_failures" json:"breaker_failures"`

	// BreakerReset is how long the circuit stays open (e.g., "30s").
	BreakerReset string `yaml:"breaker_reset" json:"breaker_reset"`
}

// RetryConfig tunes the backoff schedule for retryable remote failures.
type RetryConfig struct {
	// BaseDelay is the wait after the first failed attempt (e.g., "1s").
	BaseDelay string `yaml:"base_delay" json:"base_delay"`

	// MaxDelay caps the wait between attempts (e.g., "30s").
	MaxDelay string `yaml:"max_delay" json:"max_delay"`

	// Multiplier is the exponential growth factor.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`

	// Jitter is the randomized fraction of each delay (0.2 = ±20%).
	Jitter float64 `yaml:"jitter" json:"jitter"`

	// MaxAttempts is the total attempt budget including the first call.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// CacheConfig configures the local store snapshot.
type CacheConfig struct {
	// Path is the snapshot file. Empty uses ~/.lexstore/stores.json.
	Path string `yaml:"path" json:"path"`

	// StaleAge is how old a snapshot may be before list operations
	// refresh from the remote (e.g., "24h").
	StaleAge string `yaml:"stale_age" json:"stale_age"`
}

// UploadConfig configures the upload pipeline.
type UploadConfig struct {
	// Workers is the bounded worker count for concurrent uploads.
	Workers int `yaml:"workers" json:"workers"`

	// WaitForIndexing polls each uploaded file until the remote marks it
	// active before counting the task as succeeded.
	WaitForIndexing bool `yaml:"wait_for_indexing" json:"wait_for_indexing"`

	// PollInterval is the wait between indexing-state polls (e.g., "2s").
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`

	// PollTimeout bounds the total wait for one file to index (e.g., "2m").
	PollTimeout string `yaml:"poll_timeout" json:"poll_timeout"`
}

// ChunkingConfig holds the default token-window settings attached to
// uploads. Per-file overrides stay within the same validated ranges.
type ChunkingConfig struct {
	// MaxTokens is the chunk window size. Range: 200-2048.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// OverlapTokens is the window overlap. Range: 0-512, below MaxTokens.
	OverlapTokens int `yaml:"overlap_tokens" json:"overlap_tokens"`
}

// MetadataConfig holds practice-wide metadata defaults applied to every
// upload unless the task or the store overrides them.
type MetadataConfig struct {
	Defaults map[string]string `yaml:"defaults" json:"defaults"`
}

// QueryConfig configures query execution.
type QueryConfig struct {
	// CacheEntries is the LRU answer cache size. Zero disables caching.
	CacheEntries int `yaml:"cache_entries" json:"cache_entries"`
}

// HistoryConfig configures the local query/upload audit log.
type HistoryConfig struct {
	// Enabled turns history recording on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Path is the SQLite file. Empty uses ~/.lexstore/history.db.
	Path string `yaml:"path" json:"path"`

	// MaxEntries trims the history to the newest N rows.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// DocTypes is the document-type vocabulary used for CLI hints and tool
// schema descriptions. Metadata stays free-form; this list is advisory.
var DocTypes = []string{"Atto", "Contratto", "Sentenza", "Fattura", "Nota", "Altro"}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Remote: RemoteConfig{
			BaseURL:         "https://lexhub.studiolex.it/api/v1",
			Timeout:         "60s",
			BreakerFailures: 5,
			BreakerReset:    "30s",
		},
		Retry: RetryConfig{
			BaseDelay:   "1s",
			MaxDelay:    "30s",
			Multiplier:  2.0,
			Jitter:      0.2,
			MaxAttempts: 5,
		},
		Cache: CacheConfig{
			Path:     "", // Empty uses DefaultCachePath()
			StaleAge: "24h",
		},
		Upload: UploadConfig{
			Workers:         4,
			WaitForIndexing: true,
			PollInterval:    "2s",
			PollTimeout:     "2m",
		},
		Chunking: ChunkingConfig{
			MaxTokens:     1024,
			OverlapTokens: 100,
		},
		Metadata: MetadataConfig{
			Defaults: nil,
		},
		Query: QueryConfig{
			CacheEntries: 128,
		},
		History: HistoryConfig{
			Enabled:    true,
			Path:       "", // Empty uses DefaultHistoryPath()
			MaxEntries: 500,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// DefaultCachePath returns the default snapshot file location.
func DefaultCachePath() string {
	return filepath.Join(stateDir(), "stores.json")
}

// DefaultHistoryPath returns the default history database location.
func DefaultHistoryPath() string {
	return filepath.Join(stateDir(), "history.db")
}

// stateDir is where lexstore keeps per-user state.
func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp directory
		return filepath.Join(os.TempDir(), ".lexstore")
	}
	return filepath.Join(home, ".lexstore")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/lexstore/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/lexstore/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lexstore", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback - should rarely happen
		return filepath.Join(os.TempDir(), ".config", "lexstore", "config.yaml")
	}
	return filepath.Join(home, ".config", "lexstore", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil // No user config is fine
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration for the given working directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/lexstore/config.yaml)
//  3. Project config (.lexstore.yaml in dir)
//  4. Environment variables (LEXSTORE_*)
//
// The API key is resolved from the environment, with a .env file in dir as
// fallback; it never appears in YAML.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	// Step 1: Load user/global config (if exists)
	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	// Step 2: Load project config (overrides user config)
	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	// Step 3: Apply environment variable overrides (highest precedence)
	cfg.applyEnvOverrides()

	// Step 4: Resolve the credential
	cfg.Remote.APIKey = LoadAPIKey(dir)

	// Step 5: Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadAPIKey resolves the remote credential. Precedence: process environment,
// then a .env file in dir. godotenv never overrides variables already set,
// so exporting LEXSTORE_API_KEY always wins.
func LoadAPIKey(dir string) string {
	if dir != "" {
		_ = godotenv.Load(filepath.Join(dir, ".env"))
	} else {
		_ = godotenv.Load()
	}
	return os.Getenv("LEXSTORE_API_KEY")
}

// loadFromFile attempts to load configuration from .lexstore.yaml or .lexstore.yml.
func (c *Config) loadFromFile(dir string) error {
	// Try .yaml first (takes precedence)
	yamlPath := filepath.Join(dir, ".lexstore.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	// Try .yml as fallback
	ymlPath := filepath.Join(dir, ".lexstore.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Use a temporary struct for parsing to detect type errors
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Merge parsed values with defaults (only non-zero values)
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Remote
	if other.Remote.BaseURL != "" {
		c.Remote.BaseURL = other.Remote.BaseURL
	}
	if other.Remote.Timeout != "" {
		c.Remote.Timeout = other.Remote.Timeout
	}
	if other.Remote.BreakerFailures != 0 {
		c.Remote.BreakerFailures = other.Remote.BreakerFailures
	}
	if other.Remote.BreakerReset != "" {
		c.Remote.BreakerReset = other.Remote.BreakerReset
	}

	// Retry
	if other.Retry.BaseDelay != "" {
		c.Retry.BaseDelay = other.Retry.BaseDelay
	}
	if other.Retry.MaxDelay != "" {
		c.Retry.MaxDelay = other.Retry.MaxDelay
	}
	if other.Retry.Multiplier != 0 {
		c.Retry.Multiplier = other.Retry.Multiplier
	}
	if other.Retry.Jitter != 0 {
		c.Retry.Jitter = other.Retry.Jitter
	}
	if other.Retry.MaxAttempts != 0 {
		c.Retry.MaxAttempts = other.Retry.MaxAttempts
	}

	// Cache
	if other.Cache.Path != "" {
		c.Cache.Path = other.Cache.Path
	}
	if other.Cache.StaleAge != "" {
		c.Cache.StaleAge = other.Cache.StaleAge
	}

	// Upload
	if other.Upload.Workers != 0 {
		c.Upload.Workers = other.Upload.Workers
	}
	// WaitForIndexing can be explicitly false, so only merge when another
	// upload field signals the section was present
	if other.Upload.Workers != 0 || other.Upload.PollInterval != "" || other.Upload.PollTimeout != "" {
		c.Upload.WaitForIndexing = other.Upload.WaitForIndexing
	}
	if other.Upload.PollInterval != "" {
		c.Upload.PollInterval = other.Upload.PollInterval
	}
	if other.Upload.PollTimeout != "" {
		c.Upload.PollTimeout = other.Upload.PollTimeout
	}

	// Chunking
	if other.Chunking.MaxTokens != 0 {
		c.Chunking.MaxTokens = other.Chunking.MaxTokens
	}
	if other.Chunking.OverlapTokens != 0 {
		c.Chunking.OverlapTokens = other.Chunking.OverlapTokens
	}

	// Metadata defaults replace wholesale; per-key merging would make
	// removal impossible
	if len(other.Metadata.Defaults) > 0 {
		c.Metadata.Defaults = other.Metadata.Defaults
	}

	// Query
	if other.Query.CacheEntries != 0 {
		c.Query.CacheEntries = other.Query.CacheEntries
	}

	// History
	if other.History.Path != "" {
		c.History.Path = other.History.Path
	}
	if other.History.MaxEntries != 0 {
		c.History.MaxEntries = other.History.MaxEntries
	}
	if other.History.Path != "" || other.History.MaxEntries != 0 {
		c.History.Enabled = other.History.Enabled
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies LEXSTORE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LEXSTORE_BASE_URL"); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv("LEXSTORE_TIMEOUT"); v != "" {
		c.Remote.Timeout = v
	}
	if v := os.Getenv("LEXSTORE_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("LEXSTORE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Upload.Workers = n
		}
	}
	if v := os.Getenv("LEXSTORE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("LEXSTORE_JITTER"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f < 1 {
			c.Retry.Jitter = f
		}
	}
	if v := os.Getenv("LEXSTORE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("LEXSTORE_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("LEXSTORE_HISTORY"); v != "" {
		c.History.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// ParseDuration parses a duration string, returning fallback when the value
// is empty or malformed. Config durations are advisory; a bad value should
// degrade to the default, not abort startup.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// FindProjectRoot finds the directory whose config governs startDir.
// It looks for a .git directory or a .lexstore.yaml/.yml file by walking up
// the directory tree, falling back to startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		if fileExists(filepath.Join(currentDir, ".lexstore.yaml")) ||
			fileExists(filepath.Join(currentDir, ".lexstore.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root, return original directory
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	// Chunking ranges mirror what the remote accepts; reject locally so a
	// bad default never reaches the wire
	if c.Chunking.MaxTokens < 200 || c.Chunking.MaxTokens > 2048 {
		return fmt.Errorf("chunking.max_tokens must be between 200 and 2048, got %d", c.Chunking.MaxTokens)
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens > 512 {
		return fmt.Errorf("chunking.overlap_tokens must be between 0 and 512, got %d", c.Chunking.OverlapTokens)
	}
	if c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunking.overlap_tokens (%d) must be below max_tokens (%d)",
			c.Chunking.OverlapTokens, c.Chunking.MaxTokens)
	}

	if c.Upload.Workers < 1 || c.Upload.Workers > 32 {
		return fmt.Errorf("upload.workers must be between 1 and 32, got %d", c.Upload.Workers)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter >= 1 {
		return fmt.Errorf("retry.jitter must be in [0, 1), got %f", c.Retry.Jitter)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1, got %f", c.Retry.Multiplier)
	}
	// A shrinking jitter band under a small multiplier can reorder delays
	if c.Retry.Jitter > 0 && c.Retry.Multiplier*(1-c.Retry.Jitter) < (1+c.Retry.Jitter) {
		return fmt.Errorf("retry.multiplier %.2f is too small for jitter %.2f", c.Retry.Multiplier, c.Retry.Jitter)
	}

	if c.Query.CacheEntries < 0 {
		return fmt.Errorf("query.cache_entries must be non-negative, got %d", c.Query.CacheEntries)
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must be non-negative, got %d", c.History.MaxEntries)
	}

	validTransports := map[string]bool{"stdio": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if math.IsNaN(c.Retry.Multiplier) || math.IsNaN(c.Retry.Jitter) {
		return fmt.Errorf("retry tuning must be numeric")
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns a list of field names that were added with their default values.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Remote.Timeout == "" {
		c.Remote.Timeout = defaults.Remote.Timeout
		added = append(added, "remote.timeout")
	}
	if c.Remote.BreakerFailures == 0 {
		c.Remote.BreakerFailures = defaults.Remote.BreakerFailures
		added = append(added, "remote.breaker_failures")
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaults.Retry.MaxAttempts
		added = append(added, "retry.max_attempts")
	}
	if c.Query.CacheEntries == 0 {
		c.Query.CacheEntries = defaults.Query.CacheEntries
		added = append(added, "query.cache_entries")
	}
	if c.History.MaxEntries == 0 {
		c.History.MaxEntries = defaults.History.MaxEntries
		added = append(added, "history.max_entries")
	}

	return added
}
