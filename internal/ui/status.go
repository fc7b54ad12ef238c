package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo contains service and cache health information.
type StatusInfo struct {
	Version      string    `json:"version"`
	Credential   string    `json:"credential"` // "valid", "invalid", "unreachable"
	StoreCount   int       `json:"store_count"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CachePath    string    `json:"cache_path"`

	// Activity totals from the local history log
	Queries       int64 `json:"queries"`
	Uploads       int64 `json:"uploads"`
	FilesUploaded int64 `json:"files_uploaded"`
}

// StatusRenderer displays service status.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("LexHub Status"))

	_, _ = fmt.Fprintf(r.out, "  Version:    %s\n", info.Version)
	_, _ = fmt.Fprintf(r.out, "  Credential: %s\n", r.renderCredential(info.Credential))
	_, _ = fmt.Fprintf(r.out, "  Stores:     %d\n", info.StoreCount)
	if !info.LastSyncedAt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last sync:  %s\n", formatTimeAgo(info.LastSyncedAt))
	} else {
		_, _ = fmt.Fprintf(r.out, "  Last sync:  never\n")
	}
	if info.CachePath != "" {
		_, _ = fmt.Fprintf(r.out, "  Cache:      %s\n", info.CachePath)
	}

	if info.Queries > 0 || info.Uploads > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Activity:")
		_, _ = fmt.Fprintf(r.out, "    Queries: %d\n", info.Queries)
		_, _ = fmt.Fprintf(r.out, "    Uploads: %d (%d files)\n", info.Uploads, info.FilesUploaded)
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderCredential formats the credential state with color.
func (r *StatusRenderer) renderCredential(state string) string {
	switch state {
	case "valid":
		return r.styles.Success.Render(state)
	case "unreachable":
		return r.styles.Warning.Render(state)
	case "invalid":
		return r.styles.Error.Render(state)
	default:
		return state
	}
}

// formatTimeAgo formats a time relative to now.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
