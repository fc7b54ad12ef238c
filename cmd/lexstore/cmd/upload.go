package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/studiolex/lexstore/internal/config"
	"github.com/studiolex/lexstore/internal/model"
	"github.com/studiolex/lexstore/internal/output"
	"github.com/studiolex/lexstore/internal/pipeline"
	"github.com/studiolex/lexstore/internal/ui"
)

// uploadOptions holds CLI flags for upload.
type uploadOptions struct {
	practice      string
	docType       string
	tags          []string
	date          string
	client        string
	maxTokens     int
	overlapTokens int
	workers       int
	noWait        bool
	plain         bool
}

func newUploadCmd() *cobra.Command {
	var opts uploadOptions

	cmd := &cobra.Command{
		Use:   "upload <store> <path>...",
		Short: "Upload documents to a store",
		Long: `Upload documents to a store for indexing.

Paths may be files or directories; directories are walked recursively,
skipping dotfiles and dot-directories. Files above 100 MB and batches
above 1 GB per store are rejected locally before anything is sent.

Metadata flags apply to every file in the batch; store-level and config
defaults fill whatever is left empty. Uploads run in parallel and each
file waits for remote indexing unless --no-wait is given.`,
		Example: `  # Upload a folder of contracts
  lexstore upload "Contratti 2024" ./contratti --doc-type Contratto --practice immobiliare

  # Tag a single filing
  lexstore upload "Pratica 2024-017" atto_citazione.pdf --doc-type Atto --tags urgente,tribunale-milano

  # Custom chunking for long judgments
  lexstore upload Massimario sentenze/ --doc-type Sentenza --max-tokens 2048 --overlap-tokens 256`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runUpload(ctx, cmd, args[0], args[1:], opts)
		},
	}

	cmd.Flags().StringVar(&opts.practice, "practice", "", "Practice area metadata (e.g. immobiliare)")
	cmd.Flags().StringVar(&opts.docType, "doc-type", "", "Document type: "+strings.Join(config.DocTypes, ", "))
	cmd.Flags().StringSliceVar(&opts.tags, "tags", nil, "Tags (comma-separated)")
	cmd.Flags().StringVar(&opts.date, "date", "", "Document date metadata (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.client, "client", "", "Client name metadata")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "Chunk size in tokens, 200-2048 (default from config)")
	cmd.Flags().IntVar(&opts.overlapTokens, "overlap-tokens", 0, "Chunk overlap in tokens, 0-512 (default from config)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Parallel uploads (default from config)")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "Do not wait for remote indexing to finish")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Disable TUI mode, use plain text output")

	return cmd
}

func runUpload(ctx context.Context, cmd *cobra.Command, storeKey string, paths []string, opts uploadOptions) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger, cleanup := initCLILogging(cfg.Server.LogLevel)
	defer cleanup()

	out := output.New(cmd.OutOrStdout())
	if opts.docType != "" && !knownDocType(opts.docType) {
		out.Warningf("doc_type %q is not one of the usual types (%s); uploading anyway",
			opts.docType, strings.Join(config.DocTypes, ", "))
	}

	files, err := collectFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files to upload under %s", strings.Join(paths, ", "))
	}

	client := newRemoteClient(cfg, logger)
	defer client.Close()
	reg, _ := newRegistry(cfg, client, logger)

	st, err := reg.Resolve(ctx, storeKey)
	if err != nil {
		return err
	}

	tasks := buildTasks(files, opts)

	workers := cfg.Upload.Workers
	if opts.workers > 0 {
		workers = opts.workers
	}
	waitIndexing := cfg.Upload.WaitForIndexing && !opts.noWait

	pipe := pipeline.New(client, pipeline.Config{
		Workers:         workers,
		DefaultMetadata: mergeDefaults(cfg.Metadata.Defaults, st.DefaultMetadata),
		DefaultChunking: model.Chunking{
			MaxTokens:     cfg.Chunking.MaxTokens,
			OverlapTokens: cfg.Chunking.OverlapTokens,
		},
		WaitForIndexing: waitIndexing,
		PollInterval:    config.ParseDuration(cfg.Upload.PollInterval, 0),
		PollTimeout:     config.ParseDuration(cfg.Upload.PollTimeout, 0),
	}, logger)

	uiCfg := ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithStoreName(st.DisplayName),
	)
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		logger.Warn("failed to start progress renderer", "error", err)
	}

	batch, err := pipe.Upload(ctx, st.Name, tasks, func(snap pipeline.ProgressSnapshot) {
		renderer.UpdateProgress(ui.ProgressEvent{
			Phase:    uploadPhase(snap, waitIndexing),
			Current:  snap.Succeeded + snap.Failed,
			Total:    snap.Total,
			InFlight: snap.InFlight,
			Failed:   snap.Failed,
		})
	})
	if err != nil {
		_ = renderer.Stop()
		return err
	}

	for _, res := range batch.Results {
		if res.State == pipeline.TaskFailed && res.Err != nil {
			renderer.AddError(ui.ErrorEvent{
				File: filepath.Base(res.Task.SourcePath),
				Err:  res.Err,
			})
		}
	}
	renderer.Complete(ui.CompletionStats{
		Files:     len(tasks),
		Succeeded: batch.Succeeded,
		Failed:    batch.Failed,
		Skipped:   batch.Skipped,
		Bytes:     uploadedBytes(batch),
		Duration:  batch.Duration,
		Cancelled: batch.Cancelled,
	})
	if err := renderer.Stop(); err != nil {
		logger.Warn("failed to stop progress renderer", "error", err)
	}

	if batch.Succeeded > 0 {
		reg.RecordUploaded(st.Name, batch.Succeeded)
	}
	recordUploadHistory(ctx, cfg, logger, st.Name, batch)

	// Per-file failures stay visible in scrollback after the TUI exits.
	if batch.Failed > 0 {
		out.Newline()
		out.Errorf("%d of %d files failed:", batch.Failed, len(tasks))
		for _, res := range batch.Results {
			if res.State == pipeline.TaskFailed && res.Err != nil {
				out.Detailf("%s: %v", filepath.Base(res.Task.SourcePath), res.Err)
			}
		}
	}

	if batch.Cancelled {
		return fmt.Errorf("upload cancelled: %d of %d files done", batch.Succeeded, len(tasks))
	}
	if batch.Succeeded == 0 && batch.Failed > 0 {
		return fmt.Errorf("no files uploaded")
	}
	return nil
}

// uploadPhase maps a pipeline snapshot onto the display phase. With indexing
// waits enabled the last stretch of a batch is remote indexing, which shows
// once nothing is pending anymore.
func uploadPhase(snap pipeline.ProgressSnapshot, waitIndexing bool) ui.Phase {
	switch {
	case snap.Done():
		return ui.PhaseComplete
	case snap.Pending == snap.Total:
		return ui.PhasePreflight
	case waitIndexing && snap.Pending == 0 && snap.InFlight > 0:
		return ui.PhaseIndexing
	default:
		return ui.PhaseUploading
	}
}

// collectFiles expands the path arguments into a flat list of regular files.
// Directories are walked recursively; dotfiles and dot-directories are
// skipped so .git or .DS_Store never end up indexed.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if strings.HasPrefix(d.Name(), ".") && path != p {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", p, err)
		}
	}
	return files, nil
}

// buildTasks turns file paths into upload tasks carrying the batch metadata.
func buildTasks(files []string, opts uploadOptions) []pipeline.Task {
	meta := model.Metadata{
		Practice: opts.practice,
		DocType:  opts.docType,
		Tags:     opts.tags,
		Date:     opts.date,
		Client:   opts.client,
	}
	var chunking model.Chunking
	if opts.maxTokens > 0 || opts.overlapTokens > 0 {
		chunking = model.Chunking{
			MaxTokens:     opts.maxTokens,
			OverlapTokens: opts.overlapTokens,
		}
	}

	tasks := make([]pipeline.Task, 0, len(files))
	for _, f := range files {
		tasks = append(tasks, pipeline.Task{
			SourcePath: f,
			Metadata:   meta,
			Chunking:   chunking,
		})
	}
	return tasks
}

// mergeDefaults layers store-level defaults over config-level ones.
// Store defaults win: they were set for this store on purpose.
func mergeDefaults(configDefaults, storeDefaults map[string]string) map[string]string {
	if len(storeDefaults) == 0 {
		return configDefaults
	}
	merged := make(map[string]string, len(configDefaults)+len(storeDefaults))
	for k, v := range configDefaults {
		merged[k] = v
	}
	for k, v := range storeDefaults {
		merged[k] = v
	}
	return merged
}

// uploadedBytes sums the sizes of the files that actually made it.
func uploadedBytes(batch *pipeline.BatchResult) int64 {
	var total int64
	for _, res := range batch.Results {
		if res.State == pipeline.TaskSucceeded {
			total += res.Task.Metadata.FileSizeBytes
		}
	}
	return total
}

// knownDocType reports whether t is in the usual legal document vocabulary.
func knownDocType(t string) bool {
	for _, known := range config.DocTypes {
		if strings.EqualFold(t, known) {
			return true
		}
	}
	return false
}

// recordUploadHistory writes the batch outcome to the audit log. History
// failures are logged, never surfaced: the upload already happened.
func recordUploadHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger, storeName string, batch *pipeline.BatchResult) {
	hist, err := openHistory(cfg, logger)
	if err != nil {
		logger.Warn("cannot open history", "error", err)
		return
	}
	if hist == nil {
		return
	}
	defer func() { _ = hist.Close() }()

	if err := hist.RecordUpload(ctx, storeName,
		batch.Succeeded, batch.Failed, batch.Skipped,
		uploadedBytes(batch), batch.Duration); err != nil {
		logger.Warn("cannot record upload history", "error", err)
	}
}
