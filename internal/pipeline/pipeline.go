// Package pipeline drives batched file uploads against the remote store:
// local pre-flight validation, a bounded worker pool, per-task retries via
// the client, progress callbacks on every state transition, and explicit
// partial-success reporting.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	lexerrors "github.com/studiolex/lexstore/internal/errors"
	"github.com/studiolex/lexstore/internal/model"
)

const (
	// DefaultWorkers is the upload concurrency when none is configured.
	DefaultWorkers = 4

	// DefaultPollInterval is the wait between indexing-state polls.
	DefaultPollInterval = 2 * time.Second

	// DefaultPollTimeout bounds the total indexing wait for one file.
	DefaultPollTimeout = 2 * time.Minute
)

// Uploader is the narrow remote surface the pipeline needs.
type Uploader interface {
	UploadFile(ctx context.Context, storeName, path string, meta model.Metadata, chunking model.Chunking) (*model.FileRef, error)
	GetFile(ctx context.Context, storeName, fileName string) (*model.FileRef, error)
}

// Config holds pipeline tuning.
type Config struct {
	// Workers is the bounded worker count (default: 4). Uploads respect
	// remote rate limits better with a fixed pool than unbounded fan-out.
	Workers int

	// DefaultMetadata fills empty per-file metadata fields during
	// pre-flight.
	DefaultMetadata map[string]string

	// DefaultChunking applies when a task carries no chunking settings.
	DefaultChunking model.Chunking

	// WaitForIndexing makes each task poll its document until the remote
	// finishes indexing it.
	WaitForIndexing bool

	// PollInterval is the wait between indexing polls (default: 2s).
	PollInterval time.Duration

	// PollTimeout bounds the indexing wait per file (default: 2m).
	PollTimeout time.Duration
}

// Pipeline uploads batches of files into one store.
type Pipeline struct {
	remote Uploader
	cfg    Config
	logger *slog.Logger
}

// New creates a pipeline. Zero-value config fields fall back to defaults.
func New(remote Uploader, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{remote: remote, cfg: cfg, logger: logger}
}

// job tracks one task through the batch. Fields are written during
// pre-flight (before workers start) or by the single worker that owns the
// task; the final read happens after the pool drains.
type job struct {
	task     Task
	state    TaskState
	ref      *model.FileRef
	err      error
	duration time.Duration
}

// Upload runs one batch against the given store. Pre-flight rejections
// consume no retry budget and issue no remote calls; in-budget tasks of
// the same batch still proceed. Cancellation is cooperative: tasks not yet
// started stay Pending (reported as Skipped), in-flight tasks abort at
// their next retry decision point, and completed successes stand.
func (p *Pipeline) Upload(ctx context.Context, storeName string, tasks []Task, onProgress ProgressFunc) (*BatchResult, error) {
	if storeName == "" {
		return nil, lexerrors.New(lexerrors.ErrCodeStoreNameEmpty, "store name is required", nil)
	}
	if len(tasks) == 0 {
		return nil, lexerrors.New(lexerrors.ErrCodeInvalidInput, "no files to upload", nil)
	}

	batchID := uuid.NewString()
	start := time.Now()
	tracker := newProgressTracker(batchID, len(tasks), onProgress)

	jobs := make([]*job, len(tasks))
	for i, t := range tasks {
		t.StoreName = storeName
		jobs[i] = &job{task: t, state: TaskPending}
	}

	p.logger.Info("starting upload batch",
		"batch_id", batchID,
		"store", storeName,
		"files", len(tasks),
		"workers", p.cfg.Workers)

	// Baseline snapshot before any transition: everything pending.
	tracker.emit()

	accepted := p.preflight(jobs, tracker)

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for _, j := range accepted {
		j := j
		g.Go(func() error {
			// Task failures are recorded on the job, never returned:
			// one bad file must not cancel its batch siblings.
			p.runTask(ctx, j, tracker)
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{
		BatchID:   batchID,
		StoreName: storeName,
		Results:   make([]TaskResult, len(jobs)),
		Cancelled: ctx.Err() != nil,
		Duration:  time.Since(start),
	}
	for i, j := range jobs {
		result.Results[i] = TaskResult{
			Task:     j.task,
			State:    j.state,
			FileRef:  j.ref,
			Err:      j.err,
			Duration: j.duration,
		}
		switch j.state {
		case TaskSucceeded:
			result.Succeeded++
		case TaskFailed:
			result.Failed++
		case TaskPending:
			result.Skipped++
		}
	}

	p.logger.Info("upload batch finished",
		"batch_id", batchID,
		"store", storeName,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// preflight validates every task locally before any network activity:
// unreadable or oversized files fail fast, the batch size budget is spent
// in submission order, chunking is range-checked, and metadata defaults
// plus audit fields are filled in. Returns the jobs cleared to upload.
func (p *Pipeline) preflight(jobs []*job, tracker *progressTracker) []*job {
	accepted := make([]*job, 0, len(jobs))
	var batchBytes int64

	for _, j := range jobs {
		info, err := os.Stat(j.task.SourcePath)
		if err != nil {
			p.reject(j, tracker, statError(j.task.SourcePath, err))
			continue
		}
		if info.IsDir() {
			p.reject(j, tracker, lexerrors.New(lexerrors.ErrCodeInvalidInput,
				fmt.Sprintf("not a file: %s", j.task.SourcePath), nil))
			continue
		}

		size := info.Size()
		if size > MaxFileBytes {
			p.reject(j, tracker, lexerrors.New(lexerrors.ErrCodeFileTooLarge,
				fmt.Sprintf("%s is %s, above the %s per-file limit",
					filepath.Base(j.task.SourcePath), humanBytes(size), humanBytes(MaxFileBytes)), nil).
				WithDetail("path", j.task.SourcePath).
				WithDetail("size_bytes", strconv.FormatInt(size, 10)))
			continue
		}
		if batchBytes+size > MaxBatchBytes {
			p.reject(j, tracker, lexerrors.New(lexerrors.ErrCodeBatchTooLarge,
				fmt.Sprintf("%s would push the batch past the %s per-store budget",
					filepath.Base(j.task.SourcePath), humanBytes(MaxBatchBytes)), nil).
				WithDetail("path", j.task.SourcePath).
				WithDetail("batch_bytes", strconv.FormatInt(batchBytes, 10)))
			continue
		}

		if j.task.Chunking.IsZero() {
			j.task.Chunking = p.cfg.DefaultChunking
		}
		if !j.task.Chunking.IsZero() {
			if err := j.task.Chunking.Validate(); err != nil {
				p.reject(j, tracker, lexerrors.New(lexerrors.ErrCodeInvalidChunking, err.Error(), err).
					WithDetail("path", j.task.SourcePath))
				continue
			}
		}

		j.task.Metadata.ApplyDefaults(p.cfg.DefaultMetadata)
		j.task.Metadata.FileSizeBytes = size
		j.task.Metadata.PathHash = model.PathHash(j.task.SourcePath)

		batchBytes += size
		accepted = append(accepted, j)
	}
	return accepted
}

func (p *Pipeline) reject(j *job, tracker *progressTracker, lexErr *lexerrors.LexError) {
	j.state = TaskFailed
	j.err = lexErr
	tracker.move(TaskPending, TaskFailed)
	p.logger.Warn("upload task rejected pre-flight",
		"path", j.task.SourcePath,
		"code", lexErr.Code,
		"error", lexErr)
}

func (p *Pipeline) runTask(ctx context.Context, j *job, tracker *progressTracker) {
	// Cancellation boundary: a task that has not started stays Pending.
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	j.state = TaskInFlight
	tracker.move(TaskPending, TaskInFlight)

	ref, err := p.remote.UploadFile(ctx, j.task.StoreName, j.task.SourcePath, j.task.Metadata, j.task.Chunking)
	if err == nil && p.cfg.WaitForIndexing {
		ref, err = p.waitActive(ctx, j.task.StoreName, ref)
	}
	j.duration = time.Since(start)

	if err != nil {
		j.state = TaskFailed
		j.err = err
		tracker.move(TaskInFlight, TaskFailed)
		p.logger.Warn("upload task failed",
			"path", j.task.SourcePath,
			"store", j.task.StoreName,
			"error", err)
		return
	}

	j.state = TaskSucceeded
	j.ref = ref
	tracker.move(TaskInFlight, TaskSucceeded)
	p.logger.Debug("upload task succeeded",
		"path", j.task.SourcePath,
		"file", ref.Name,
		"duration_ms", j.duration.Milliseconds())
}

// waitActive polls the document until the remote finishes indexing it.
// The upload itself already succeeded, so cancellation mid-wait keeps the
// success and returns the last known state; only an explicit Failed state
// or the poll timeout fail the task.
func (p *Pipeline) waitActive(ctx context.Context, storeName string, ref *model.FileRef) (*model.FileRef, error) {
	if ref.State == model.FileStateActive {
		return ref, nil
	}

	deadline := time.Now().Add(p.cfg.PollTimeout)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	current := ref
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("indexing wait abandoned on cancellation", "file", ref.Name)
			return current, nil
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return nil, lexerrors.New(lexerrors.ErrCodeIndexingTimeout,
				fmt.Sprintf("%s not indexed after %s", ref.Name, p.cfg.PollTimeout), nil).
				WithDetail("file", ref.Name)
		}

		got, err := p.remote.GetFile(ctx, storeName, ref.Name)
		if err != nil {
			if ctx.Err() != nil {
				return current, nil
			}
			return nil, err
		}
		current = got

		switch got.State {
		case model.FileStateActive:
			return got, nil
		case model.FileStateFailed:
			return nil, lexerrors.New(lexerrors.ErrCodeIndexingFailed,
				fmt.Sprintf("remote indexing failed for %s", got.Name), nil).
				WithDetail("file", got.Name)
		}
	}
}

func statError(path string, err error) *lexerrors.LexError {
	switch {
	case os.IsNotExist(err):
		return lexerrors.New(lexerrors.ErrCodeFileNotFound,
			fmt.Sprintf("file not found: %s", path), err).
			WithDetail("path", path)
	case os.IsPermission(err):
		return lexerrors.New(lexerrors.ErrCodeFilePermission,
			fmt.Sprintf("permission denied: %s", path), err).
			WithDetail("path", path)
	default:
		return lexerrors.New(lexerrors.ErrCodeUploadFailed,
			fmt.Sprintf("cannot access %s", path), err).
			WithDetail("path", path)
	}
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/float64(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
