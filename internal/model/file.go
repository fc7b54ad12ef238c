package model

import (
	"strings"
	"time"
)

// FileState is the remote indexing state of an uploaded document.
type FileState string

const (
	// FileStateProcessing means the document is uploaded but not yet indexed.
	FileStateProcessing FileState = "processing"
	// FileStateActive means the document is indexed and queryable.
	FileStateActive FileState = "active"
	// FileStateFailed means remote indexing failed; the document is unusable.
	FileStateFailed FileState = "failed"
)

// FileRef identifies one uploaded document inside a store.
type FileRef struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	State       FileState `json:"state"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// NormalizeFileState maps the remote state representation onto FileState.
// The service has been observed to send "STATE_ACTIVE", "ACTIVE" and
// "active" for the same state depending on API version; an empty state on a
// fresh upload means indexing has not started and reads as processing.
func NormalizeFileState(s string) FileState {
	s = strings.ToLower(strings.TrimPrefix(strings.ToUpper(s), "STATE_"))
	switch s {
	case "", "pending", "processing":
		return FileStateProcessing
	case "active":
		return FileStateActive
	case "failed", "error":
		return FileStateFailed
	default:
		return FileState(s)
	}
}
