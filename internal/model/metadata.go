package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Metadata is the per-document metadata attached to an upload. Fields are
// free-form strings from the practice's point of view; the service indexes
// them for filtered queries but does not validate their contents.
type Metadata struct {
	Practice      string   `json:"practice,omitempty"`
	DocType       string   `json:"doc_type,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Date          string   `json:"date,omitempty"`
	Client        string   `json:"client,omitempty"`
	FileSizeBytes int64    `json:"file_size_bytes,omitempty"`
	PathHash      string   `json:"path_hash,omitempty"`
}

// ApplyDefaults fills empty fields from a defaults map (store-level or
// config-level). Known keys: practice, doc_type, date, client, tags
// (comma-separated). Explicit task values always win.
func (m *Metadata) ApplyDefaults(defaults map[string]string) {
	if len(defaults) == 0 {
		return
	}
	if m.Practice == "" {
		m.Practice = defaults["practice"]
	}
	if m.DocType == "" {
		m.DocType = defaults["doc_type"]
	}
	if m.Date == "" {
		m.Date = defaults["date"]
	}
	if m.Client == "" {
		m.Client = defaults["client"]
	}
	if len(m.Tags) == 0 && defaults["tags"] != "" {
		for _, tag := range strings.Split(defaults["tags"], ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				m.Tags = append(m.Tags, tag)
			}
		}
	}
}

// PathHash returns the audit fingerprint recorded with each upload: the
// first 16 hex characters of the SHA-256 of the source path. Re-uploading
// the same path yields the same hash; duplicates are allowed and the hash
// only serves dedup reports and audit trails.
func PathHash(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:16]
}

// Chunking controls how a document is split into overlapping token windows
// for indexing.
type Chunking struct {
	MaxTokens     int `json:"max_tokens,omitempty"`
	OverlapTokens int `json:"overlap_tokens,omitempty"`
}

// Validate checks the ranges the indexing service accepts.
func (c Chunking) Validate() error {
	if c.MaxTokens < 200 || c.MaxTokens > 2048 {
		return fmt.Errorf("max_tokens must be between 200 and 2048, got %d", c.MaxTokens)
	}
	if c.OverlapTokens < 0 || c.OverlapTokens > 512 {
		return fmt.Errorf("overlap_tokens must be between 0 and 512, got %d", c.OverlapTokens)
	}
	if c.OverlapTokens >= c.MaxTokens {
		return fmt.Errorf("overlap_tokens (%d) must be below max_tokens (%d)", c.OverlapTokens, c.MaxTokens)
	}
	return nil
}

// IsZero reports whether no chunking was specified, meaning configured
// defaults apply.
func (c Chunking) IsZero() bool {
	return c.MaxTokens == 0 && c.OverlapTokens == 0
}
