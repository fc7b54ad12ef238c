package pipeline

import (
	"sync"
	"time"
)

// ProgressSnapshot is an immutable view of batch progress, pushed to the
// ProgressFunc on every task state transition.
type ProgressSnapshot struct {
	BatchID        string  `json:"batch_id"`
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	InFlight       int     `json:"in_flight"`
	Succeeded      int     `json:"succeeded"`
	Failed         int     `json:"failed"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
}

// Done reports whether every task reached a terminal state.
func (s ProgressSnapshot) Done() bool {
	return s.Succeeded+s.Failed == s.Total
}

// ProgressFunc receives progress snapshots. It is called synchronously
// from worker goroutines in transition order; implementations must return
// quickly and hand long work (rendering, channels) off.
type ProgressFunc func(ProgressSnapshot)

// progressTracker provides thread-safe state-transition accounting for one
// batch. Snapshots are emitted under the lock so observers always see a
// consistent, ordered sequence.
type progressTracker struct {
	mu sync.Mutex

	batchID   string
	total     int
	pending   int
	inFlight  int
	succeeded int
	failed    int
	startTime time.Time

	onProgress ProgressFunc
}

func newProgressTracker(batchID string, total int, onProgress ProgressFunc) *progressTracker {
	return &progressTracker{
		batchID:    batchID,
		total:      total,
		pending:    total,
		startTime:  time.Now(),
		onProgress: onProgress,
	}
}

// move records a task transition and pushes a snapshot.
func (p *progressTracker) move(from, to TaskState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch from {
	case TaskPending:
		p.pending--
	case TaskInFlight:
		p.inFlight--
	}
	switch to {
	case TaskInFlight:
		p.inFlight++
	case TaskSucceeded:
		p.succeeded++
	case TaskFailed:
		p.failed++
	}

	p.emitLocked()
}

// emit pushes the current snapshot without a transition. Used for the
// baseline snapshot before any task starts.
func (p *progressTracker) emit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitLocked()
}

func (p *progressTracker) emitLocked() {
	if p.onProgress == nil {
		return
	}
	p.onProgress(p.snapshotLocked())
}

func (p *progressTracker) snapshotLocked() ProgressSnapshot {
	var pct float64
	if p.total > 0 {
		pct = float64(p.succeeded+p.failed) / float64(p.total) * 100.0
	}
	return ProgressSnapshot{
		BatchID:        p.batchID,
		Total:          p.total,
		Pending:        p.pending,
		InFlight:       p.inFlight,
		Succeeded:      p.succeeded,
		Failed:         p.failed,
		ProgressPct:    pct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
	}
}
