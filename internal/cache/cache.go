// Package cache owns the persisted local snapshot of store metadata. The
// snapshot file is the single source of local truth between process runs:
// loading never fails (missing or corrupt files yield an empty snapshot),
// merging is pure, and persisting is atomic.
package cache

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	lexerrors "github.com/studiolex/lexstore/internal/errors"
	"github.com/studiolex/lexstore/internal/model"
)

// Snapshot is the full local view of remote stores plus the time it was
// last reconciled against the remote listing.
type Snapshot struct {
	Stores       []model.Store `json:"stores"`
	LastSyncedAt time.Time     `json:"last_synced_at"`
}

// Get returns the store with the given name.
func (s Snapshot) Get(name string) (model.Store, bool) {
	for _, store := range s.Stores {
		if store.Name == name {
			return store, true
		}
	}
	return model.Store{}, false
}

// Upsert replaces the store with the same name, or appends it.
func (s *Snapshot) Upsert(store model.Store) {
	for i := range s.Stores {
		if s.Stores[i].Name == store.Name {
			s.Stores[i] = store
			return
		}
	}
	s.Stores = append(s.Stores, store)
}

// Remove deletes the store with the given name. Reports whether an entry
// was removed.
func (s *Snapshot) Remove(name string) bool {
	for i := range s.Stores {
		if s.Stores[i].Name == name {
			s.Stores = append(s.Stores[:i], s.Stores[i+1:]...)
			return true
		}
	}
	return false
}

// IsEmpty reports whether the snapshot holds no stores and has never been
// synced.
func (s Snapshot) IsEmpty() bool {
	return len(s.Stores) == 0 && s.LastSyncedAt.IsZero()
}

// Stale reports whether the snapshot is older than maxAge at the given
// time. A never-synced snapshot is always stale; maxAge <= 0 disables
// age-based staleness (refresh happens only when forced).
func (s Snapshot) Stale(maxAge time.Duration, now time.Time) bool {
	if s.LastSyncedAt.IsZero() {
		return true
	}
	if maxAge <= 0 {
		return false
	}
	return now.Sub(s.LastSyncedAt) > maxAge
}

// Merge reconciles the snapshot against an authoritative remote listing:
// entries are replaced by name, entries absent remotely are dropped, and
// entries named in locallyAuthoritative keep their local default_metadata
// over whatever the remote reports. Merge never touches disk; the result
// carries now as its sync time.
func (s Snapshot) Merge(remote []model.Store, locallyAuthoritative []string, now time.Time) Snapshot {
	auth := make(map[string]bool, len(locallyAuthoritative))
	for _, name := range locallyAuthoritative {
		auth[name] = true
	}

	out := Snapshot{
		Stores:       make([]model.Store, 0, len(remote)),
		LastSyncedAt: now,
	}
	for _, r := range remote {
		merged := r
		if auth[r.Name] {
			if prev, ok := s.Get(r.Name); ok {
				merged.DefaultMetadata = prev.DefaultMetadata
			}
		}
		out.Stores = append(out.Stores, merged)
	}
	return out
}

// DefaultPath returns the standard snapshot location: ~/.lexstore/stores.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "lexstore", "stores.json")
	}
	return filepath.Join(home, ".lexstore", "stores.json")
}

// Store reads and writes the snapshot file. Persist is the only path that
// mutates the on-disk representation. An in-process mutex serializes disk
// access; an advisory file lock guards the write window against another
// process on the same file (sharing a cache file across processes is
// unsupported; concurrent writers are last-writer-wins).
type Store struct {
	path   string
	logger *slog.Logger
	lock   *FileLock

	mu sync.Mutex
}

// NewStore creates a cache store for the given snapshot path.
// An empty path means DefaultPath().
func NewStore(path string, logger *slog.Logger) *Store {
	if path == "" {
		path = DefaultPath()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger,
		lock:   NewFileLock(path),
	}
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted snapshot. It never fails: a missing file yields
// an empty snapshot silently, and an unreadable or corrupt file yields an
// empty snapshot with a warning. The next Persist overwrites whatever was
// corrupt.
func (s *Store) Load() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Snapshot{}
	}
	if err != nil {
		s.logger.Warn("failed to read cache snapshot, starting with empty cache",
			"path", s.path,
			"error", err)
		return Snapshot{}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		corrupt := lexerrors.New(lexerrors.ErrCodeCacheCorrupt, "cache snapshot corrupt", err).
			WithDetail("path", s.path)
		s.logger.Warn("cache snapshot corrupt, starting with empty cache",
			"code", corrupt.Code,
			"path", s.path,
			"error", err)
		return Snapshot{}
	}
	return snap
}

// Persist writes the snapshot atomically: write to a temp file, then
// rename over the real one, so a crash mid-write never leaves a partial
// snapshot visible to the next Load.
func (s *Store) Persist(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return lexerrors.New(lexerrors.ErrCodeCachePersist, "failed to create cache directory", err).
			WithDetail("path", s.path)
	}

	if err := s.lock.Lock(); err != nil {
		return lexerrors.New(lexerrors.ErrCodeCachePersist, "failed to lock cache file", err).
			WithDetail("path", s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return lexerrors.New(lexerrors.ErrCodeCachePersist, "failed to encode cache snapshot", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return lexerrors.New(lexerrors.ErrCodeCachePersist, "failed to write cache snapshot", err).
			WithDetail("path", tmpPath)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return lexerrors.New(lexerrors.ErrCodeCachePersist, "failed to replace cache snapshot", err).
			WithDetail("path", s.path)
	}
	return nil
}
