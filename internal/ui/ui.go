// Package ui provides terminal UI components for upload progress and
// status display.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Phase represents a stage of an upload batch.
type Phase int

const (
	// PhasePreflight is the local validation stage (size caps, metadata).
	PhasePreflight Phase = iota
	// PhaseUploading is the remote transfer stage.
	PhaseUploading
	// PhaseIndexing is the wait for the remote service to index uploads.
	PhaseIndexing
	// PhaseComplete indicates the batch is finished.
	PhaseComplete
)

// String returns the human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhasePreflight:
		return "Preflight"
	case PhaseUploading:
		return "Uploading"
	case PhaseIndexing:
		return "Indexing"
	case PhaseComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short phase tag for plain text output.
func (p Phase) Icon() string {
	switch p {
	case PhasePreflight:
		return "PREP"
	case PhaseUploading:
		return "UPLOAD"
	case PhaseIndexing:
		return "INDEX"
	case PhaseComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update for one batch.
type ProgressEvent struct {
	Phase       Phase
	Current     int // Files in a terminal state
	Total       int
	InFlight    int
	Failed      int
	CurrentFile string
	Message     string
}

// ErrorEvent represents a per-file failure or warning.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// CompletionStats contains final batch statistics.
type CompletionStats struct {
	Files     int // Submitted tasks
	Succeeded int
	Failed    int
	Skipped   int // Never started because the batch was cancelled
	Bytes     int64
	Duration  time.Duration
	Cancelled bool
}

// Renderer defines the interface for upload progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	StoreName  string // Target store display name to show in the header
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithStoreName sets the store display name to show in the header.
func WithStoreName(name string) ConfigOption {
	return func(c *Config) {
		c.StoreName = name
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output: output,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// NewRenderer creates an appropriate renderer based on config and environment.
// It returns a TUI renderer for interactive terminals, and a plain text
// renderer for CI environments, pipes, or when --plain is specified.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain {
		return NewPlainRenderer(cfg)
	}

	if !IsTTY(cfg.Output) {
		return NewPlainRenderer(cfg)
	}

	if DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}

	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}

	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
