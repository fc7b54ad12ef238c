// Package model defines the shared data vocabulary: stores, file references,
// upload metadata, and query results. Types here are plain data; behavior
// lives in the packages that consume them.
package model

import (
	"fmt"
	"time"
)

// Store represents one logical document collection on the indexing service.
// Name is the remote-assigned stable identifier and the sole join key
// between cached and remote records; it never changes once assigned.
type Store struct {
	Name            string            `json:"name"`
	DisplayName     string            `json:"display_name"`
	Description     string            `json:"description,omitempty"`
	FileCount       int               `json:"file_count"`
	CreatedAt       time.Time         `json:"created_at"`
	DefaultMetadata map[string]string `json:"default_metadata,omitempty"`
}

func (s *Store) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("store name is required")
	}
	return nil
}
