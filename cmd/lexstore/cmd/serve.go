package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/studiolex/lexstore/internal/config"
	"github.com/studiolex/lexstore/internal/logging"
	"github.com/studiolex/lexstore/internal/mcp"
	"github.com/studiolex/lexstore/internal/model"
	"github.com/studiolex/lexstore/internal/pipeline"
	"github.com/studiolex/lexstore/internal/query"
)

func newServeCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio)",
		Long: `Start the MCP server over stdio.

This is the mode AI clients use: tools for listing, creating and deleting
stores, uploading documents, and querying are exposed over the Model
Context Protocol. All logging goes to the log file; stdout carries only
JSON-RPC.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, logLevel)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")

	return cmd
}

// runServe wires the full dependency graph and serves MCP over stdio.
// The MCP protocol requires stdout to be used exclusively for JSON-RPC,
// so nothing here may print before the server starts.
func runServe(ctx context.Context, logLevel string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if logLevel == "" {
		logLevel = cfg.Server.LogLevel
	}
	cleanup, err := logging.SetupMCPModeWithLevel(logLevel)
	if err != nil {
		// No log file is survivable; protocol output must stay clean either way.
		slog.SetDefault(slog.New(slog.DiscardHandler))
	} else {
		defer cleanup()
	}

	srv, closeDeps, err := buildServer(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer closeDeps()

	return srv.Serve(ctx)
}

// buildServer assembles the MCP server from config. The returned close
// function releases the remote connection pool and the history database.
func buildServer(cfg *config.Config, logger *slog.Logger) (*mcp.Server, func(), error) {
	client := newRemoteClient(cfg, logger)
	reg, cacheStore := newRegistry(cfg, client, logger)

	pipe := pipeline.New(client, pipeline.Config{
		Workers:         cfg.Upload.Workers,
		DefaultMetadata: cfg.Metadata.Defaults,
		DefaultChunking: model.Chunking{
			MaxTokens:     cfg.Chunking.MaxTokens,
			OverlapTokens: cfg.Chunking.OverlapTokens,
		},
		WaitForIndexing: cfg.Upload.WaitForIndexing,
		PollInterval:    config.ParseDuration(cfg.Upload.PollInterval, 0),
		PollTimeout:     config.ParseDuration(cfg.Upload.PollTimeout, 0),
	}, logger)

	var executor query.Executor = query.New(client, logger)
	if cfg.Query.CacheEntries > 0 {
		executor = query.NewCachedExecutor(executor, cfg.Query.CacheEntries)
	}

	hist, err := openHistory(cfg, logger)
	if err != nil {
		// History is an audit convenience; the server runs without it.
		logger.Warn("history disabled: cannot open audit log", "error", err)
		hist = nil
	}

	srv, err := mcp.NewServer(mcp.Deps{
		Stores:   reg,
		Files:    client,
		Uploader: pipe,
		Query:    executor,
		Auth:     client,
		Cache:    cacheStore,
		History:  hist,
	}, logger)
	if err != nil {
		client.Close()
		if hist != nil {
			_ = hist.Close()
		}
		return nil, nil, fmt.Errorf("failed to build MCP server: %w", err)
	}

	closeDeps := func() {
		client.Close()
		if hist != nil {
			_ = hist.Close()
		}
	}
	return srv, closeDeps, nil
}
