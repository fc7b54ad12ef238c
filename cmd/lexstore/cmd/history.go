package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/studiolex/lexstore/internal/history"
	"github.com/studiolex/lexstore/internal/output"
	"github.com/studiolex/lexstore/internal/ui"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent uploads and queries",
		Long: `Show the local activity log: recent uploads and queries with their
outcomes. Question texts are never stored, only their hashes.

The log lives on this machine and can be disabled in the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), cmd, limit, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runHistory(ctx context.Context, cmd *cobra.Command, limit int, jsonOutput bool) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger, cleanup := initCLILogging(cfg.Server.LogLevel)
	defer cleanup()

	out := output.New(cmd.OutOrStdout())

	hist, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	if hist == nil {
		out.Status("", "History is disabled. Enable it with history.enabled: true in .lexstore.yaml.")
		return nil
	}
	defer func() { _ = hist.Close() }()

	entries, err := hist.Recent(ctx, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		out.Status("", "No activity recorded yet.")
		return nil
	}

	out.Statusf("🕘", "Last %d entries:", len(entries))
	for _, e := range entries {
		out.Detail(formatHistoryEntry(e))
	}
	return nil
}

// formatHistoryEntry renders one log line per entry, shaped by its kind.
func formatHistoryEntry(e history.Entry) string {
	when := e.CreatedAt.Format("2006-01-02 15:04")
	dur := time.Duration(e.DurationMs) * time.Millisecond

	switch e.Kind {
	case history.KindQuery:
		return fmt.Sprintf("%s  query   %-24s %d tokens, %d citations, %s",
			when, e.StoreName, e.TokensUsed, e.CitationCount, dur)
	case history.KindUpload:
		return fmt.Sprintf("%s  upload  %-24s %d ok, %d failed, %s, %s",
			when, e.StoreName, e.FilesSucceeded, e.FilesFailed, ui.FormatBytes(e.TotalBytes), dur)
	default:
		return fmt.Sprintf("%s  %-7s %-24s %s", when, e.Kind, e.StoreName, dur)
	}
}
