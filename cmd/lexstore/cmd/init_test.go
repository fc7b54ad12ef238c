package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCmd_BasicExecution(t *testing.T) {
	tmpDir := t.TempDir()

	var stdout bytes.Buffer
	cmd := newInitCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	oldWd, _ := os.Getwd()
	err := os.Chdir(tmpDir)
	require.NoError(t, err)
	defer func() { _ = os.Chdir(oldWd) }()

	_ = cmd.Execute()

	// Should produce some output
	output := stdout.String()
	assert.Contains(t, output, "lexstore")
	assert.Contains(t, output, "Initializing")
}

func TestInitCmd_CreatesMCPJSON(t *testing.T) {
	tmpDir := t.TempDir()

	var stdout bytes.Buffer
	cmd := newInitCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	oldWd, _ := os.Getwd()
	err := os.Chdir(tmpDir)
	require.NoError(t, err)
	defer func() { _ = os.Chdir(oldWd) }()

	_ = cmd.Execute()

	// Check .mcp.json was created with the expected entry
	data, err := os.ReadFile(filepath.Join(tmpDir, ".mcp.json"))
	require.NoError(t, err)

	var mcpCfg MCPConfig
	require.NoError(t, json.Unmarshal(data, &mcpCfg))
	entry, exists := mcpCfg.MCPServers["lexstore"]
	require.True(t, exists, "lexstore should be in mcpServers")
	assert.Equal(t, "stdio", entry.Type)
	assert.Equal(t, []string{"serve"}, entry.Args)
	assert.NotEmpty(t, entry.Command)
	assert.NotEmpty(t, entry.Cwd, "cwd pins the server to the practice root")
}

func TestInitCmd_AlreadyInitialized(t *testing.T) {
	tmpDir := t.TempDir()

	// Create existing VALID .mcp.json (with all required fields)
	validConfig := `{
  "mcpServers": {
    "lexstore": {
      "type": "stdio",
      "command": "/usr/local/bin/lexstore",
      "args": ["serve"],
      "cwd": "/home/user/pratica"
    }
  }
}`
	mcpPath := filepath.Join(tmpDir, ".mcp.json")
	require.NoError(t, os.WriteFile(mcpPath, []byte(validConfig), 0644))

	var stdout bytes.Buffer
	cmd := newInitCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	oldWd, _ := os.Getwd()
	err := os.Chdir(tmpDir)
	require.NoError(t, err)
	defer func() { _ = os.Chdir(oldWd) }()

	err = cmd.Execute()
	assert.NoError(t, err)

	// Should warn and point at --force
	output := stdout.String()
	assert.Contains(t, output, ".mcp.json exists")
	assert.Contains(t, output, "--force")
}

func TestInitCmd_ForceReinitialize(t *testing.T) {
	tmpDir := t.TempDir()

	mcpPath := filepath.Join(tmpDir, ".mcp.json")
	require.NoError(t, os.WriteFile(mcpPath, []byte(`{"mcpServers":{}}`), 0644))

	var stdout bytes.Buffer
	cmd := newInitCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--force"})

	oldWd, _ := os.Getwd()
	err := os.Chdir(tmpDir)
	require.NoError(t, err)
	defer func() { _ = os.Chdir(oldWd) }()

	_ = cmd.Execute()

	// Should NOT warn about existing config when using --force
	output := stdout.String()
	assert.NotContains(t, output, ".mcp.json exists")

	// And the entry should now be populated
	data, err := os.ReadFile(mcpPath)
	require.NoError(t, err)
	var mcpCfg MCPConfig
	require.NoError(t, json.Unmarshal(data, &mcpCfg))
	assert.Contains(t, mcpCfg.MCPServers, "lexstore")
}

func TestInitCmd_ValidatesExistingConfig_MissingCwd(t *testing.T) {
	tmpDir := t.TempDir()

	// Create .mcp.json WITHOUT cwd field
	mcpConfig := `{
  "mcpServers": {
    "lexstore": {
      "type": "stdio",
      "command": "/usr/local/bin/lexstore",
      "args": ["serve"]
    }
  }
}`
	mcpPath := filepath.Join(tmpDir, ".mcp.json")
	require.NoError(t, os.WriteFile(mcpPath, []byte(mcpConfig), 0644))

	var stdout bytes.Buffer
	cmd := newInitCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	oldWd, _ := os.Getwd()
	err := os.Chdir(tmpDir)
	require.NoError(t, err)
	defer func() { _ = os.Chdir(oldWd) }()

	_ = cmd.Execute()

	output := stdout.String()
	// Should warn about missing cwd
	assert.Contains(t, output, "cwd", "Should warn about missing cwd field")
}

func TestInitCmd_CreatesLexstoreYAML(t *testing.T) {
	tmpDir := t.TempDir()

	var stdout bytes.Buffer
	cmd := newInitCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	oldWd, _ := os.Getwd()
	err := os.Chdir(tmpDir)
	require.NoError(t, err)
	defer func() { _ = os.Chdir(oldWd) }()

	_ = cmd.Execute()

	// Check .lexstore.yaml was created from the embedded template
	data, err := os.ReadFile(filepath.Join(tmpDir, ".lexstore.yaml"))
	require.NoError(t, err, ".lexstore.yaml should be created")

	content := string(data)
	assert.Contains(t, content, "version:", "Should contain version field")
	assert.Contains(t, content, "upload:", "Should contain upload section")
	assert.Contains(t, content, "chunking:", "Should contain chunking section")
	assert.Contains(t, content, "#", "Should contain comments")
	assert.NotContains(t, content, "api_key", "API key never belongs in YAML")
}

func TestInitCmd_PreservesExistingLexstoreYAML(t *testing.T) {
	tmpDir := t.TempDir()

	// Create existing .lexstore.yaml with custom content
	existingContent := "version: 1\n# My custom config\nupload:\n  workers: 8\n"
	yamlPath := filepath.Join(tmpDir, ".lexstore.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(existingContent), 0644))

	var stdout bytes.Buffer
	cmd := newInitCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--force"})

	oldWd, _ := os.Getwd()
	err := os.Chdir(tmpDir)
	require.NoError(t, err)
	defer func() { _ = os.Chdir(oldWd) }()

	_ = cmd.Execute()

	// Should preserve existing .lexstore.yaml
	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, existingContent, string(data), "Existing .lexstore.yaml should not be overwritten")
}

func TestFindLexstoreBinary(t *testing.T) {
	// Should be able to find itself (the test binary won't be lexstore, but function shouldn't panic)
	path, err := findLexstoreBinary()

	// May succeed or fail depending on environment
	if err == nil {
		assert.NotEmpty(t, path)
	}
}

func TestMCPServerConfig_RoundTrip(t *testing.T) {
	cfg := MCPServerConfig{
		Type:    "stdio",
		Command: "/usr/local/bin/lexstore",
		Args:    []string{"serve"},
		Cwd:     "/home/user/pratica",
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)

	jsonStr := string(data)
	assert.Contains(t, jsonStr, `"type"`, "JSON output should contain type field")
	assert.Contains(t, jsonStr, `"stdio"`, "JSON output should contain stdio value")

	var parsed MCPServerConfig
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, cfg, parsed, "config should survive a round-trip")
}

// =============================================================================
// .gitignore auto-add tests
// =============================================================================

func TestHasEnvIgnore(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", false},
		{"no match", "*.log\nnode_modules/\n", false},
		{"exact .env", ".env\n", true},
		{"rooted /.env", "/.env\n", true},
		{"glob .env*", ".env*\n", true},
		{"commented", "# .env\n", false},
		{"with whitespace", "  .env  \n", true},
		{"in middle", "*.log\n.env\nnode_modules/\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasEnvIgnore(tt.content))
		})
	}
}

func TestEnsureGitignore_CreatesNewFile(t *testing.T) {
	tmpDir := t.TempDir()

	added, err := ensureGitignore(tmpDir)

	require.NoError(t, err)
	assert.True(t, added, "should return true when gitignore created")

	content, err := os.ReadFile(filepath.Join(tmpDir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(content), ".env")
	assert.Contains(t, string(content), "# API credentials")
}

func TestEnsureGitignore_AppendsToExisting(t *testing.T) {
	tmpDir := t.TempDir()
	gitignorePath := filepath.Join(tmpDir, ".gitignore")

	existingContent := "*.log\nnode_modules/\n"
	require.NoError(t, os.WriteFile(gitignorePath, []byte(existingContent), 0644))

	added, err := ensureGitignore(tmpDir)

	require.NoError(t, err)
	assert.True(t, added)

	content, _ := os.ReadFile(gitignorePath)
	assert.Contains(t, string(content), "*.log", "should preserve existing content")
	assert.Contains(t, string(content), ".env", "should add .env")
}

func TestEnsureGitignore_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()
	gitignorePath := filepath.Join(tmpDir, ".gitignore")

	existingContent := "*.log\n.env\n"
	require.NoError(t, os.WriteFile(gitignorePath, []byte(existingContent), 0644))

	added, err := ensureGitignore(tmpDir)

	require.NoError(t, err)
	assert.False(t, added, "should return false when already present")

	content, _ := os.ReadFile(gitignorePath)
	assert.Equal(t, existingContent, string(content), "should not modify file")
}

func TestEnsureGitignore_PreservesCRLF(t *testing.T) {
	tmpDir := t.TempDir()
	gitignorePath := filepath.Join(tmpDir, ".gitignore")

	existingContent := "*.log\r\nnode_modules/\r\n"
	require.NoError(t, os.WriteFile(gitignorePath, []byte(existingContent), 0644))

	added, err := ensureGitignore(tmpDir)

	require.NoError(t, err)
	assert.True(t, added)

	content, _ := os.ReadFile(gitignorePath)
	// Should use CRLF for new entry
	assert.Contains(t, string(content), ".env\r\n")
}

func TestEnsureGitignore_HandlesNoTrailingNewline(t *testing.T) {
	tmpDir := t.TempDir()
	gitignorePath := filepath.Join(tmpDir, ".gitignore")

	existingContent := "*.log"
	require.NoError(t, os.WriteFile(gitignorePath, []byte(existingContent), 0644))

	added, err := ensureGitignore(tmpDir)

	require.NoError(t, err)
	assert.True(t, added)

	content, _ := os.ReadFile(gitignorePath)
	assert.Contains(t, string(content), "*.log\n")
	assert.Contains(t, string(content), ".env")
}

func TestEnsureGitignore_SkipsCommentedOut(t *testing.T) {
	tmpDir := t.TempDir()
	gitignorePath := filepath.Join(tmpDir, ".gitignore")

	existingContent := "*.log\n# .env\n"
	require.NoError(t, os.WriteFile(gitignorePath, []byte(existingContent), 0644))

	added, err := ensureGitignore(tmpDir)

	require.NoError(t, err)
	assert.True(t, added, "should add entry when existing is commented")
}

func TestInitCmd_GitignoreIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	oldWd, _ := os.Getwd()
	err := os.Chdir(tmpDir)
	require.NoError(t, err)
	defer func() { _ = os.Chdir(oldWd) }()

	// Run init twice
	for i := 0; i < 2; i++ {
		cmd := newInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--force"})
		_ = cmd.Execute()
	}

	// Check .gitignore has exactly one .env entry
	content, err := os.ReadFile(filepath.Join(tmpDir, ".gitignore"))
	require.NoError(t, err)

	count := bytes.Count(content, []byte(".env"))
	assert.Equal(t, 1, count, "Should have exactly one .env entry after multiple runs")
}
