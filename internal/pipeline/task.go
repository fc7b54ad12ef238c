package pipeline

import (
	"time"

	"github.com/studiolex/lexstore/internal/model"
)

// Size limits enforced before any remote call. A violating task fails
// pre-flight and never touches the network.
const (
	// MaxFileBytes is the per-file upload limit (100 MB).
	MaxFileBytes int64 = 100 << 20

	// MaxBatchBytes is the total size budget per batch per store (1 GB).
	MaxBatchBytes int64 = 1 << 30
)

// TaskState is the lifecycle state of one upload task. Transitions run
// Pending → InFlight → (Succeeded | Failed); pre-flight rejections go
// Pending → Failed without ever entering InFlight. Terminal states never
// transition again.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskInFlight  TaskState = "in_flight"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// Task is one file's upload intent. StoreName is filled in by the pipeline
// from the batch target; Metadata gaps are filled from configured defaults
// during pre-flight.
type Task struct {
	SourcePath string
	StoreName  string
	Metadata   model.Metadata
	Chunking   model.Chunking
}

// TaskResult is the terminal outcome of one task.
type TaskResult struct {
	Task  Task
	State TaskState

	// FileRef is the uploaded document, set on success.
	FileRef *model.FileRef

	// Err is the failure reason, set on failure. A task still Pending here
	// was never started because the batch was cancelled.
	Err error

	Duration time.Duration
}

// BatchResult aggregates per-task outcomes for one upload batch. Partial
// success is explicit: a batch with any failed task reports Failed > 0,
// never a silent full success.
type BatchResult struct {
	BatchID   string
	StoreName string

	// Results holds one entry per submitted task, in submission order.
	Results []TaskResult

	Succeeded int
	Failed    int

	// Skipped counts tasks never started because the batch was cancelled.
	Skipped int

	// Cancelled is set when the batch was cut short by context
	// cancellation. Completed successes stand regardless.
	Cancelled bool

	Duration time.Duration
}

// FullSuccess reports whether every task succeeded.
func (r *BatchResult) FullSuccess() bool {
	return r.Failed == 0 && r.Skipped == 0 && r.Succeeded == len(r.Results)
}

// PartialFailure reports whether some tasks succeeded and some did not.
func (r *BatchResult) PartialFailure() bool {
	return r.Succeeded > 0 && !r.FullSuccess()
}
