package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/studiolex/lexstore/internal/history"
)

func TestFormatHistoryEntry_Query(t *testing.T) {
	// Given: a query entry
	e := history.Entry{
		Kind:          history.KindQuery,
		StoreName:     "contratti-2024",
		CreatedAt:     time.Date(2024, 6, 1, 14, 30, 0, 0, time.UTC),
		DurationMs:    1200,
		TokensUsed:    850,
		CitationCount: 3,
	}

	line := formatHistoryEntry(e)

	// Then: timestamp, store, tokens, citations and duration all appear
	assert.Contains(t, line, "2024-06-01 14:30")
	assert.Contains(t, line, "query")
	assert.Contains(t, line, "contratti-2024")
	assert.Contains(t, line, "850 tokens")
	assert.Contains(t, line, "3 citations")
	assert.Contains(t, line, "1.2s")
}

func TestFormatHistoryEntry_Upload(t *testing.T) {
	// Given: an upload entry
	e := history.Entry{
		Kind:           history.KindUpload,
		StoreName:      "massimario",
		CreatedAt:      time.Date(2024, 6, 2, 9, 15, 0, 0, time.UTC),
		DurationMs:     45000,
		FilesSucceeded: 10,
		FilesFailed:    2,
		TotalBytes:     5 * 1024 * 1024,
	}

	line := formatHistoryEntry(e)

	// Then: counts, size and duration all appear
	assert.Contains(t, line, "upload")
	assert.Contains(t, line, "massimario")
	assert.Contains(t, line, "10 ok")
	assert.Contains(t, line, "2 failed")
	assert.Contains(t, line, "5.0 MB")
	assert.Contains(t, line, "45s")
}

func TestFormatHistoryEntry_UnknownKind(t *testing.T) {
	// Given: an entry with an unrecognized kind
	e := history.Entry{
		Kind:       "purge",
		StoreName:  "archivio",
		CreatedAt:  time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC),
		DurationMs: 100,
	}

	// Then: the line still renders with the raw kind
	line := formatHistoryEntry(e)
	assert.Contains(t, line, "purge")
	assert.Contains(t, line, "archivio")
}
