package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/studiolex/lexstore/internal/cache"
	"github.com/studiolex/lexstore/internal/config"
	lexerrors "github.com/studiolex/lexstore/internal/errors"
	"github.com/studiolex/lexstore/internal/remote"
	"github.com/studiolex/lexstore/internal/ui"
	"github.com/studiolex/lexstore/pkg/version"
)

const authProbeTimeout = 10 * time.Second

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show credential, cache and activity status",
		Long: `Show the health of the lexstore setup: whether the API key is
accepted by LexHub, how many stores the local cache knows about, when it
was last synced, and the recorded activity totals.

The credential probe talks to the remote service; everything else is
read locally and works offline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger, cleanup := initCLILogging(cfg.Server.LogLevel)
	defer cleanup()

	client := newRemoteClient(cfg, logger)
	defer client.Close()

	info := collectStatus(ctx, cfg, client, logger)

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

// collectStatus gathers everything the status view shows. A failing auth
// probe degrades the credential field, it never fails the command.
func collectStatus(ctx context.Context, cfg *config.Config, client *remote.Client, logger *slog.Logger) ui.StatusInfo {
	info := ui.StatusInfo{
		Version: version.Version,
	}

	cacheStore := cache.NewStore(cfg.Cache.Path, logger)
	snap := cacheStore.Load()
	info.StoreCount = len(snap.Stores)
	info.LastSyncedAt = snap.LastSyncedAt
	info.CachePath = cacheStore.Path()

	authCtx, cancel := context.WithTimeout(ctx, authProbeTimeout)
	defer cancel()
	info.Credential = statusCredential(client.CheckAuth(authCtx))

	if hist, err := openHistory(cfg, logger); err != nil {
		logger.Warn("cannot open history", "error", err)
	} else if hist != nil {
		defer func() { _ = hist.Close() }()
		if totals, err := hist.Totals(ctx); err != nil {
			logger.Warn("cannot read history totals", "error", err)
		} else {
			info.Queries = totals.Queries
			info.Uploads = totals.Uploads
			info.FilesUploaded = totals.FilesUploaded
		}
	}

	return info
}

// statusCredential maps the auth probe outcome to a display state.
// Rejected credentials read "invalid"; anything else that keeps us from
// reaching the service reads "unreachable".
func statusCredential(err error) string {
	if err == nil {
		return "valid"
	}
	var le *lexerrors.LexError
	if errors.As(err, &le) {
		switch le.Code {
		case lexerrors.ErrCodeUnauthenticated, lexerrors.ErrCodeAPIKeyMissing:
			return "invalid"
		}
	}
	return "unreachable"
}
