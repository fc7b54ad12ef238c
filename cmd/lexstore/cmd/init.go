package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studiolex/lexstore/configs"
	"github.com/studiolex/lexstore/internal/config"
	"github.com/studiolex/lexstore/internal/output"
	"github.com/studiolex/lexstore/pkg/version"
)

// MCPServerConfig represents the MCP server configuration in .mcp.json
type MCPServerConfig struct {
	Type    string            `json:"type,omitempty"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// MCPConfig represents the root .mcp.json structure
type MCPConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize lexstore for a practice",
		Long: `Initialize lexstore in the current directory.

This command:
1. Registers the MCP server in .mcp.json (project scope)
2. Generates a .lexstore.yaml configuration template
3. Adds .env to .gitignore so the API key never gets committed
4. Checks that LEXSTORE_API_KEY is available

After running, restart your MCP client to activate the server.`,
		Example: `  # Initialize in current directory
  lexstore init

  # Force reinitialize (overwrite existing MCP config)
  lexstore init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	out.Statusf("🚀", "lexstore %s - Initializing...", version.Version)
	out.Newline()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		root = cwd
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	out.Statusf("📁", "Practice root: %s", absRoot)

	mcpConfigPath := filepath.Join(absRoot, ".mcp.json")

	if !force {
		if _, err := os.Stat(mcpConfigPath); err == nil {
			isValid, warnings := validateExistingMCPConfig(mcpConfigPath)
			out.Newline()

			if !isValid && len(warnings) > 0 {
				out.Warning("Existing .mcp.json has configuration issues:")
				for _, w := range warnings {
					out.Statusf("  ⚠️ ", "%s", w)
				}
				out.Newline()
				out.Status("💡", "Use --force to fix these issues")
				return nil
			}

			out.Warning("Already initialized (.mcp.json exists)")
			out.Status("💡", "Use --force to reinitialize")
			return nil
		}
	}

	out.Newline()
	out.Status("⚙️ ", "Configuring MCP integration...")

	mcpConfigured, err := configureViaMCPJSON(out, absRoot, force)
	if err != nil {
		out.Warningf("MCP configuration failed: %v", err)
		out.Status("💡", "You can manually configure .mcp.json later")
	} else if mcpConfigured {
		out.Success("Added MCP server (project scope)")
	}

	if err := generateLexstoreYAML(out, absRoot); err != nil {
		out.Warningf("Could not create .lexstore.yaml template: %v", err)
	}

	added, err := ensureGitignore(absRoot)
	if err != nil {
		out.Warningf("Could not update .gitignore: %v", err)
	} else if added {
		out.Status("📝", "Added .env to .gitignore")
	}

	hasKey := config.LoadAPIKey(absRoot) != ""
	if hasKey {
		out.Success("API key found")
	} else {
		out.Newline()
		out.Warning("LEXSTORE_API_KEY is not set")
		out.Status("💡", "Create a .env file in the practice root:")
		out.Status("", "   LEXSTORE_API_KEY=lxs_xxxxxxxxxxxx")
	}

	out.Newline()
	out.Success("Initialization complete!")
	out.Newline()
	out.Status("📋", "Next steps:")
	if !hasKey {
		out.Status("", "  1. Put your API key in .env (see above)")
		out.Status("", "  2. Restart your MCP client to activate the server")
		out.Status("", "  3. Run 'lexstore stores list' to verify connectivity")
	} else {
		out.Status("", "  1. Restart your MCP client to activate the server")
		out.Status("", "  2. Run 'lexstore stores list' to verify connectivity")
	}

	if !config.UserConfigExists() {
		out.Newline()
		out.Status("💡", "For machine-specific settings (endpoint, retry tuning):")
		out.Status("", "   Run 'lexstore config init' to create user config")
	}

	if !mcpConfigured {
		out.Newline()
		out.Warning("MCP not auto-configured - manual setup required")
		out.Status("💡", fmt.Sprintf("Add to .mcp.json: %s", mcpConfigPath))
	}

	return nil
}

// generateLexstoreYAML creates a template .lexstore.yaml if it doesn't exist.
// Checks both .yaml and .yml extensions and never overwrites either: the
// file carries user customizations once created. The template comes from
// configs/project-config.example.yaml, embedded at build time.
func generateLexstoreYAML(out *output.Writer, projectRoot string) error {
	yamlPath := filepath.Join(projectRoot, ".lexstore.yaml")

	if _, err := os.Stat(yamlPath); err == nil {
		out.Status("ℹ️ ", "Existing .lexstore.yaml preserved")
		return nil
	}

	ymlPath := filepath.Join(projectRoot, ".lexstore.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		out.Status("ℹ️ ", "Existing .lexstore.yml found, skipping template")
		return nil
	}

	if err := os.WriteFile(yamlPath, []byte(configs.ProjectConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write .lexstore.yaml: %w", err)
	}

	out.Statusf("📝", "Created .lexstore.yaml (optional project configuration)")
	return nil
}

// hasEnvIgnore checks if .env is already in .gitignore.
// Handles variations: .env, /.env, .env*
func hasEnvIgnore(content string) bool {
	patterns := []string{
		".env",
		"/.env",
		".env*",
	}

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, pattern := range patterns {
			if line == pattern {
				return true
			}
		}
	}
	return false
}

// ensureGitignore adds .env to .gitignore if not present.
// Returns (true, nil) if added, (false, nil) if already present.
func ensureGitignore(projectRoot string) (bool, error) {
	gitignorePath := filepath.Join(projectRoot, ".gitignore")

	content, err := os.ReadFile(gitignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reading .gitignore: %w", err)
	}

	if hasEnvIgnore(string(content)) {
		return false, nil
	}

	// Match existing line endings, default to LF
	lineEnding := "\n"
	if bytes.Contains(content, []byte("\r\n")) {
		lineEnding = "\r\n"
	}

	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, []byte(lineEnding)...)
	}

	var entry string
	if len(content) == 0 {
		entry = fmt.Sprintf("# API credentials (never commit)%s.env%s",
			lineEnding, lineEnding)
	} else {
		entry = fmt.Sprintf("%s# API credentials (never commit)%s.env%s",
			lineEnding, lineEnding, lineEnding)
	}

	content = append(content, []byte(entry)...)

	if err := os.WriteFile(gitignorePath, content, 0644); err != nil {
		return false, fmt.Errorf("writing .gitignore: %w", err)
	}

	return true, nil
}

// validateExistingMCPConfig checks if existing .mcp.json has required fields
func validateExistingMCPConfig(mcpPath string) (bool, []string) {
	var warnings []string

	data, err := os.ReadFile(mcpPath)
	if err != nil {
		return false, nil
	}

	var mcpCfg MCPConfig
	if err := json.Unmarshal(data, &mcpCfg); err != nil {
		warnings = append(warnings, "Invalid JSON in .mcp.json")
		return false, warnings
	}

	entry, exists := mcpCfg.MCPServers["lexstore"]
	if !exists {
		warnings = append(warnings, "lexstore not configured in .mcp.json")
		return false, warnings
	}

	if entry.Cwd == "" {
		warnings = append(warnings, "Missing 'cwd' field - MCP server may run from wrong directory")
	}
	if entry.Command == "" {
		warnings = append(warnings, "Missing 'command' field")
	}

	return len(warnings) == 0, warnings
}

// configureViaMCPJSON creates or updates .mcp.json in the project root
func configureViaMCPJSON(out *output.Writer, projectRoot string, force bool) (bool, error) {
	mcpPath := filepath.Join(projectRoot, ".mcp.json")

	var existingConfig MCPConfig
	if data, err := os.ReadFile(mcpPath); err == nil {
		if err := json.Unmarshal(data, &existingConfig); err != nil {
			return false, fmt.Errorf("failed to parse existing .mcp.json: %w", err)
		}

		if _, exists := existingConfig.MCPServers["lexstore"]; exists && !force {
			out.Status("ℹ️ ", "lexstore already configured in .mcp.json")
			return true, nil
		}
	} else {
		existingConfig = MCPConfig{
			MCPServers: make(map[string]MCPServerConfig),
		}
	}
	if existingConfig.MCPServers == nil {
		existingConfig.MCPServers = make(map[string]MCPServerConfig)
	}

	binPath, err := findLexstoreBinary()
	if err != nil {
		return false, fmt.Errorf("failed to find lexstore binary: %w", err)
	}

	// cwd pins the server to this practice so .lexstore.yaml and .env resolve
	existingConfig.MCPServers["lexstore"] = MCPServerConfig{
		Type:    "stdio",
		Command: binPath,
		Args:    []string{"serve"},
		Cwd:     projectRoot,
	}

	data, err := json.MarshalIndent(existingConfig, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(mcpPath, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write .mcp.json: %w", err)
	}

	out.Statusf("📝", "Created %s", mcpPath)
	return true, nil
}

// findLexstoreBinary locates the lexstore binary
func findLexstoreBinary() (string, error) {
	execPath, err := os.Executable()
	if err == nil {
		// Resolve symlinks to get the real path
		realPath, err := filepath.EvalSymlinks(execPath)
		if err == nil {
			return realPath, nil
		}
		return execPath, nil
	}

	path, err := exec.LookPath("lexstore")
	if err != nil {
		return "", fmt.Errorf("lexstore not found in PATH: %w", err)
	}

	return path, nil
}
