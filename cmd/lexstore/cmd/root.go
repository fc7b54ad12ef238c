// Package cmd provides the CLI commands for lexstore.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/studiolex/lexstore/internal/cache"
	"github.com/studiolex/lexstore/internal/config"
	lexerrors "github.com/studiolex/lexstore/internal/errors"
	"github.com/studiolex/lexstore/internal/history"
	"github.com/studiolex/lexstore/internal/logging"
	"github.com/studiolex/lexstore/internal/registry"
	"github.com/studiolex/lexstore/internal/remote"
	"github.com/studiolex/lexstore/pkg/version"
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the lexstore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lexstore",
		Short: "Manage and query remote legal document stores",
		Long: `lexstore manages document stores on the LexHub indexing service:
create stores, upload documents with practice metadata, and ask
natural-language questions that return grounded answers with citations.

Run 'lexstore' with no arguments to start the MCP server over stdio,
which is how AI clients launch it. Everything else is a subcommand.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			// If help was explicitly requested, show it
			if len(args) > 0 {
				return cmd.Help()
			}
			// Bare invocation is how MCP clients start the server.
			return runServe(cmd.Context(), "")
		},
	}

	cmd.SetVersionTemplate("lexstore version {{.Version}}\n")

	// Debug logging flag
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.lexstore/logs/")

	cmd.PersistentPreRunE = startDebugLogging
	cmd.PersistentPostRunE = stopDebugLogging

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStoresCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startDebugLogging enables file-plus-stderr debug logging when --debug is set.
func startDebugLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}

	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("Debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))

	return nil
}

// stopDebugLogging flushes and closes the debug log file.
func stopDebugLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves the project root from the working directory and loads
// the merged configuration (defaults, user file, project file, environment).
func loadConfig() (*config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current directory: %w", err)
	}

	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		root = cwd
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, root, nil
}

// initCLILogging sets up file-only logging for CLI commands so user-facing
// output stays clean. Never fatal: on setup failure the process default
// logger stays in place.
func initCLILogging(level string) (*slog.Logger, func()) {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if level != "" {
		logCfg.Level = level
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return slog.Default(), func() {}
	}
	slog.SetDefault(logger)
	return logger, cleanup
}

// backoffPolicy builds the retry schedule from config, falling back to the
// default tuning for unset fields.
func backoffPolicy(cfg *config.Config) lexerrors.BackoffPolicy {
	def := lexerrors.DefaultBackoffPolicy()
	policy := lexerrors.BackoffPolicy{
		BaseDelay:   config.ParseDuration(cfg.Retry.BaseDelay, def.BaseDelay),
		MaxDelay:    config.ParseDuration(cfg.Retry.MaxDelay, def.MaxDelay),
		Multiplier:  cfg.Retry.Multiplier,
		Jitter:      cfg.Retry.Jitter,
		MaxAttempts: cfg.Retry.MaxAttempts,
	}
	if policy.Multiplier == 0 {
		policy.Multiplier = def.Multiplier
	}
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	return policy
}

// newRemoteClient builds the LexHub client from config.
func newRemoteClient(cfg *config.Config, logger *slog.Logger) *remote.Client {
	return remote.NewClient(remote.Config{
		BaseURL:         cfg.Remote.BaseURL,
		APIKey:          cfg.Remote.APIKey,
		Timeout:         config.ParseDuration(cfg.Remote.Timeout, remote.DefaultTimeout),
		PoolSize:        cfg.Upload.Workers,
		Backoff:         backoffPolicy(cfg),
		BreakerFailures: cfg.Remote.BreakerFailures,
		BreakerReset:    config.ParseDuration(cfg.Remote.BreakerReset, 0),
	}, logger)
}

// newRegistry builds the store registry on top of the remote client and the
// persisted cache snapshot.
func newRegistry(cfg *config.Config, client *remote.Client, logger *slog.Logger) (*registry.Registry, *cache.Store) {
	cacheStore := cache.NewStore(cfg.Cache.Path, logger)
	reg := registry.New(client, cacheStore, registry.Config{
		StaleAge: config.ParseDuration(cfg.Cache.StaleAge, 0),
	}, logger)
	return reg, cacheStore
}

// openHistory opens the audit log when enabled. A nil store with nil error
// means history is disabled.
func openHistory(cfg *config.Config, logger *slog.Logger) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	return history.Open(history.Config{
		Path:       cfg.History.Path,
		MaxEntries: cfg.History.MaxEntries,
	}, logger)
}
